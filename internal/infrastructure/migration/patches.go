package migration

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Patch is one versioned pair of SQL files, named <version>_<name>.up.sql
// and <version>_<name>.down.sql
type Patch struct {
	Version uint
	Name    string
}

// String returns the file base name
func (p Patch) String() string {
	return fmt.Sprintf("%d_%s", p.Version, p.Name)
}

// ListPatches returns the patches found in dir ordered by version.
// A missing directory has no patches.
func ListPatches(dir string) ([]Patch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Patch{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	patches := make([]Patch, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		version, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(version, 10, 64)
		if err != nil {
			continue
		}
		patches = append(patches, Patch{Version: uint(v), Name: name})
	}

	sort.Slice(patches, func(i, j int) bool { return patches[i].Version < patches[j].Version })
	return patches, nil
}

// FindPatch looks a patch up by name. Names are compared after
// normalization so "Stock-Item unique" finds stock_item_unique.
func FindPatch(dir, name string) (Patch, error) {
	patches, err := ListPatches(dir)
	if err != nil {
		return Patch{}, err
	}
	want := sanitizeName(name)
	for _, p := range patches {
		if p.Name == want || p.String() == name {
			return p, nil
		}
	}
	return Patch{}, fmt.Errorf("patch %q not found in %s", name, dir)
}

// sanitizeName lowercases name and folds separators into single underscores
func sanitizeName(name string) string {
	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			result = append(result, c)
		case c >= 'A' && c <= 'Z':
			result = append(result, c+'a'-'A')
		case c >= '0' && c <= '9':
			result = append(result, c)
		case c == ' ' || c == '-' || c == '_':
			if len(result) > 0 && result[len(result)-1] != '_' {
				result = append(result, '_')
			}
		}
	}
	if len(result) > 0 && result[len(result)-1] == '_' {
		result = result[:len(result)-1]
	}
	return string(result)
}
