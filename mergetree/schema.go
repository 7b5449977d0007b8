// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package mergetree

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// ColumnDef is one column of a table schema.
type ColumnDef struct {
	Name string
	Type string
}

// Schema is a versioned snapshot of the table's column list and sorting
// configuration. Schemas are immutable: ALTER produces a new snapshot and
// swaps it in atomically. Parts are not rewritten on schema change; the read
// path interprets a part's physical data through whatever schema is current.
type Schema struct {
	// Version increases by one on every committed ALTER.
	Version uint64
	// Columns is the ordered column list.
	Columns []ColumnDef
	// SortingKey names the columns of the sorting key, in order.
	SortingKey []string
	// PartitionBy optionally names the partitioning column.
	PartitionBy string
}

// Column returns the definition of the named column, if present.
func (s *Schema) Column(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// clone returns a deep copy with the version advanced by one.
func (s *Schema) clone() *Schema {
	return &Schema{
		Version:     s.Version + 1,
		Columns:     slices.Clone(s.Columns),
		SortingKey:  slices.Clone(s.SortingKey),
		PartitionBy: s.PartitionBy,
	}
}

// validate checks the schema's internal consistency.
func (s *Schema) validate() error {
	if len(s.Columns) == 0 {
		return errors.New("mergetree: schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" || c.Type == "" {
			return errors.Newf("mergetree: column %q has empty name or type", c.Name)
		}
		if _, ok := seen[c.Name]; ok {
			return errors.Newf("mergetree: duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for _, k := range s.SortingKey {
		if _, ok := s.Column(k); !ok {
			return errors.Newf("mergetree: sorting key column %q does not exist", k)
		}
	}
	if s.PartitionBy != "" {
		if _, ok := s.Column(s.PartitionBy); !ok {
			return errors.Newf("mergetree: partition column %q does not exist", s.PartitionBy)
		}
	}
	return nil
}

// AlterKind discriminates the ALTER command variants.
type AlterKind int

const (
	// AlterAddColumn appends a column (or inserts it after AfterColumn).
	AlterAddColumn AlterKind = iota
	// AlterDropColumn removes a column.
	AlterDropColumn
	// AlterModifyColumn changes a column's type, which must be convertible
	// from the current one.
	AlterModifyColumn
)

// String implements fmt.Stringer.
func (k AlterKind) String() string {
	switch k {
	case AlterAddColumn:
		return "ADD COLUMN"
	case AlterDropColumn:
		return "DROP COLUMN"
	case AlterModifyColumn:
		return "MODIFY COLUMN"
	default:
		return "unknown"
	}
}

// AlterCmd is one command of an ALTER change set.
type AlterCmd struct {
	Kind   AlterKind
	Column ColumnDef
	// AfterColumn optionally positions an added column.
	AfterColumn string
}

var typeWidenings = map[string]string{
	"Int8":    "Int16",
	"Int16":   "Int32",
	"Int32":   "Int64",
	"UInt8":   "UInt16",
	"UInt16":  "UInt32",
	"UInt32":  "UInt64",
	"Float32": "Float64",
}

// typeConvertible reports whether a column of type from can be reinterpreted
// as type to without rewriting part data. Only identity and lossless
// widening conversions qualify.
func typeConvertible(from, to string) bool {
	for from != to {
		wider, ok := typeWidenings[from]
		if !ok {
			return false
		}
		from = wider
	}
	return true
}

// applyAlter validates cmds against cur and returns the resulting candidate
// schema without touching cur. This is the prepare-phase computation: it
// runs outside any lock and mutates no live state.
func applyAlter(cur *Schema, cmds []AlterCmd) (*Schema, error) {
	if len(cmds) == 0 {
		return nil, errors.New("mergetree: empty alter change set")
	}
	next := cur.clone()
	for _, cmd := range cmds {
		switch cmd.Kind {
		case AlterAddColumn:
			if _, ok := next.Column(cmd.Column.Name); ok {
				return nil, errors.Newf("mergetree: cannot add column %q: already exists", cmd.Column.Name)
			}
			at := len(next.Columns)
			if cmd.AfterColumn != "" {
				at = -1
				for i, c := range next.Columns {
					if c.Name == cmd.AfterColumn {
						at = i + 1
						break
					}
				}
				if at < 0 {
					return nil, errors.Newf("mergetree: cannot add column %q after %q: no such column",
						cmd.Column.Name, cmd.AfterColumn)
				}
			}
			next.Columns = slices.Insert(next.Columns, at, cmd.Column)
		case AlterDropColumn:
			if _, ok := next.Column(cmd.Column.Name); !ok {
				return nil, errors.Newf("mergetree: cannot drop column %q: no such column", cmd.Column.Name)
			}
			if slices.Contains(next.SortingKey, cmd.Column.Name) {
				return nil, errors.Newf("mergetree: cannot drop sorting key column %q", cmd.Column.Name)
			}
			if next.PartitionBy == cmd.Column.Name {
				return nil, errors.Newf("mergetree: cannot drop partition column %q", cmd.Column.Name)
			}
			next.Columns = slices.DeleteFunc(next.Columns, func(c ColumnDef) bool {
				return c.Name == cmd.Column.Name
			})
		case AlterModifyColumn:
			old, ok := next.Column(cmd.Column.Name)
			if !ok {
				return nil, errors.Newf("mergetree: cannot modify column %q: no such column", cmd.Column.Name)
			}
			if !typeConvertible(old.Type, cmd.Column.Type) {
				return nil, errors.Newf("mergetree: cannot modify column %q: %s is not convertible to %s",
					cmd.Column.Name, old.Type, cmd.Column.Type)
			}
			for i := range next.Columns {
				if next.Columns[i].Name == cmd.Column.Name {
					next.Columns[i].Type = cmd.Column.Type
				}
			}
		default:
			return nil, errors.Newf("mergetree: unknown alter kind %d", cmd.Kind)
		}
	}
	if err := next.validate(); err != nil {
		return nil, err
	}
	return next, nil
}
