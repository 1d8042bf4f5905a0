package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	*testutil.Fixture
	payments *PaymentService
	methods  *MethodService
	groups   *GroupService
	tills    *TillService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ts := testutil.NewStore(t)
	f := testutil.NewFixture(t, ts)
	logger := zap.NewNop()
	payments := NewPaymentService(newMemoryAttachments(), logger)
	methods := NewMethodService(logger)
	tills := NewTillService(payments, methods, nil, logger)
	return &testEnv{
		Fixture:  f,
		payments: payments,
		methods:  methods,
		groups:   NewGroupService(payments, tills, logger),
		tills:    tills,
	}
}

func (e *testEnv) run(t *testing.T, fn func(ctx context.Context, st store.Store) error) {
	t.Helper()
	e.Store.Run(t, fn)
}

func (e *testEnv) try(fn func(ctx context.Context, st store.Store) error) error {
	return e.Store.Try(fn)
}

// group creates a lonely group, optionally paid by payer
func (e *testEnv) group(t *testing.T, payerID *uuid.UUID) *finance.PaymentGroup {
	t.Helper()
	var g *finance.PaymentGroup
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		g, err = e.groups.CreateGroup(ctx, st, payerID, nil)
		return err
	})
	return g
}

// payment creates a payment of method in group and moves it to status
func (e *testEnv) payment(t *testing.T, g *finance.PaymentGroup, name finance.MethodName, typ finance.PaymentType, value string, status finance.PaymentStatus) *finance.Payment {
	t.Helper()
	var p *finance.Payment
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		p, err = e.methods.CreatePayment(ctx, st, e.Ctx, e.Method(name), PaymentRequest{
			Type:    typ,
			GroupID: g.ID,
			Value:   testutil.D(value),
		})
		if err != nil {
			return err
		}
		if status == finance.PaymentStatusPreview {
			return nil
		}
		if err := e.payments.SetPending(ctx, st, e.Ctx, p); err != nil {
			return err
		}
		switch status {
		case finance.PaymentStatusPaid:
			return e.payments.Pay(ctx, st, e.Ctx, p, PayOptions{})
		case finance.PaymentStatusCancelled:
			return e.payments.Cancel(ctx, st, e.Ctx, p, "test")
		}
		return nil
	})
	return p
}

func (e *testEnv) reload(t *testing.T, p *finance.Payment) *finance.Payment {
	t.Helper()
	var out *finance.Payment
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		out, err = st.Payments().FindByID(ctx, p.ID)
		return err
	})
	return out
}

func (e *testEnv) transactions(t *testing.T, p *finance.Payment) []finance.AccountTransaction {
	t.Helper()
	var txs []finance.AccountTransaction
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		txs, err = st.AccountTransactions().FindAll(ctx, shared.Where("payment_id", p.ID))
		return err
	})
	return txs
}

func daysAgo(n int) time.Time {
	return testutil.Now.AddDate(0, 0, -n)
}

type memoryAttachments struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryAttachments() *memoryAttachments {
	return &memoryAttachments{objects: make(map[string][]byte)}
}

func (m *memoryAttachments) Put(_ context.Context, key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryAttachments) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return data, nil
}

func (m *memoryAttachments) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func requireCode(t *testing.T, err error, target *shared.DomainError) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)
}
