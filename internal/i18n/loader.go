package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

//go:embed tables/*.yaml
var builtinTables embed.FS

// DefaultTables returns the tables shipped with the binary, English first.
func DefaultTables() ([]*Translation, error) {
	tables, err := LoadFS(builtinTables, "tables")
	if err != nil {
		return nil, err
	}
	return PreferFirst(tables, "en"), nil
}

// LoadDir reads every .yaml and .yml file in dir, ordered by file name.
func LoadDir(dir string) ([]*Translation, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS reads every table file under dir in fsys, ordered by file name.
func LoadFS(fsys fs.FS, dir string) ([]*Translation, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var tables []*Translation
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		table, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// PreferFirst moves the table whose code equals code to the front, keeping
// the relative order of the others.
func PreferFirst(tables []*Translation, code string) []*Translation {
	for i, t := range tables {
		if strings.EqualFold(t.Meta.Code, code) {
			out := make([]*Translation, 0, len(tables))
			out = append(out, t)
			out = append(out, tables[:i]...)
			return append(out, tables[i+1:]...)
		}
	}
	return tables
}

// Lint reports template problems that would make substitution fail at
// runtime: enum and plural placeholders without options, plural options
// without an other case, and spelled-out plurals without strings.
func Lint(table *Translation) error {
	var result *multierror.Error
	table.Walk(func(key string, leaf *Node) {
		opts := leaf.Options
		if opts == nil {
			opts = &ParamOptions{}
		}
		for _, d := range scanPlaceholders(leaf.Text) {
			switch d.annotation {
			case typeEnum:
				if len(opts.Enum[d.name]) == 0 {
					result = multierror.Append(result, fmt.Errorf("%s: enum %s has no values", key, d.name))
				}
			case typePlural:
				p, ok := opts.Plural[d.name]
				if !ok {
					result = multierror.Append(result, fmt.Errorf("%s: plural %s has no options", key, d.name))
					continue
				}
				if p.Other == "" {
					result = multierror.Append(result, fmt.Errorf("%s: plural %s has no other case", key, d.name))
				}
				if strings.EqualFold(p.Format, "strings") && len(p.Strings) == 0 {
					result = multierror.Append(result, fmt.Errorf("%s: plural %s uses strings format without strings", key, d.name))
				}
			}
		}
	})
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("table %s: %w", table.Meta.Code, err)
	}
	return nil
}
