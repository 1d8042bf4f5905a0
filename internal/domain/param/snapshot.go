package param

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Snapshot is an immutable view of parameter values.
// Reading an undeclared name or reading with the wrong type is a programming
// error and panics.
type Snapshot struct {
	registry *Registry
	values   map[string]string
}

// Defaults returns a snapshot of the default registry without overrides
func Defaults() *Snapshot {
	s, _ := DefaultRegistry().Snapshot(nil)
	return s
}

// With returns a copy of the snapshot with name set to value
func (s *Snapshot) With(name string, value any) *Snapshot {
	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	s.mustDef(name, "")
	values[name] = fmt.Sprint(value)
	return &Snapshot{registry: s.registry, values: values}
}

// Bool reads a boolean parameter
func (s *Snapshot) Bool(name string) bool {
	s.mustDef(name, TypeBool)
	v, _ := strconv.ParseBool(s.values[name])
	return v
}

// Int reads an integer parameter
func (s *Snapshot) Int(name string) int {
	s.mustDef(name, TypeInt)
	v, _ := strconv.Atoi(s.values[name])
	return v
}

// Decimal reads a decimal parameter
func (s *Snapshot) Decimal(name string) decimal.Decimal {
	s.mustDef(name, TypeDecimal)
	v, _ := decimal.NewFromString(s.values[name])
	return v
}

// String reads a string parameter
func (s *Snapshot) String(name string) string {
	s.mustDef(name, TypeString)
	return s.values[name]
}

// Raw returns the textual value of every parameter
func (s *Snapshot) Raw() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Snapshot) mustDef(name string, t Type) {
	def, ok := s.registry.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("param: unknown parameter %s", name))
	}
	if t != "" && def.Type != t {
		panic(fmt.Sprintf("param: %s is %s, not %s", name, def.Type, t))
	}
}
