// Resolves table names to files in the location.

package tools

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// tableExt is the extension of Paradox data files.
const tableExt = ".db"

// tablePath resolves a table name inside the location, appending ".db" when
// the name has no extension.
func (d *Dispatcher) tablePath(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", InvalidPath()
	}
	p := filepath.Join(d.root, name)
	if filepath.Ext(p) == "" {
		p += tableExt
	}
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", OutsideLocation(name)
	}
	return p, nil
}

// tableFiles returns the names of the table files in the location, sorted.
// An unreadable location yields no names.
func (d *Dispatcher) tableFiles() []string {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), tableExt) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names
}
