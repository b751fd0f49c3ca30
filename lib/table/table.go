/*package table implements the column-oriented tables that assembled datasets
are stored in. A Table is an ordered set of named, typed columns of equal
length. Tables from different file shards are concatenated in canonical shard
order, and concatenation cross-checks that every shard produced the same
schema.*/
package table

import (
	"fmt"
)

// Column is a generic interface over a named, typed data array. The concrete
// types are Float64, Int32 and Int64.
type Column interface {
	// Name returns the column's name.
	Name() string
	// Len returns the length of the underlying array.
	Len() int
	// Data returns the underlying array as an interface{}.
	Data() interface{}
	// typeName returns a short tag used in schema comparisons and in the
	// archive format.
	typeName() string
	// emptyLike returns a zero-length column with the same name and type.
	emptyLike() Column
	// appendTo grows dst (which must have come from emptyLike or an earlier
	// appendTo on a matching column) by this column's contents.
	appendTo(dst Column) (Column, error)
}

// Type assertions
var (
	_ Column = &Float64{ }
	_ Column = &Int32{ }
	_ Column = &Int64{ }
)

// Float64 implements the Column interface for []float64 data.
type Float64 struct {
	name string
	data []float64
}

// NewFloat64 creates a column with a given name wrapping a given array.
func NewFloat64(name string, x []float64) *Float64 {
	return &Float64{ name, x }
}

func (x *Float64) Name() string { return x.name }
func (x *Float64) Len() int { return len(x.data) }
func (x *Float64) Data() interface{} { return x.data }
func (x *Float64) Values() []float64 { return x.data }
func (x *Float64) typeName() string { return "f64" }
func (x *Float64) emptyLike() Column {
	return NewFloat64(x.name, []float64{})
}
func (x *Float64) appendTo(dst Column) (Column, error) {
	d, ok := dst.(*Float64)
	if !ok {
		return nil, fmt.Errorf("cannot append float64 column '%s' to a "+
			"column of type %s", x.name, dst.typeName())
	}
	d.data = append(d.data, x.data...)
	return d, nil
}

// Int32 implements the Column interface for []int32 data.
type Int32 struct {
	name string
	data []int32
}

// NewInt32 creates a column with a given name wrapping a given array.
func NewInt32(name string, x []int32) *Int32 {
	return &Int32{ name, x }
}

func (x *Int32) Name() string { return x.name }
func (x *Int32) Len() int { return len(x.data) }
func (x *Int32) Data() interface{} { return x.data }
func (x *Int32) Values() []int32 { return x.data }
func (x *Int32) typeName() string { return "i32" }
func (x *Int32) emptyLike() Column {
	return NewInt32(x.name, []int32{})
}
func (x *Int32) appendTo(dst Column) (Column, error) {
	d, ok := dst.(*Int32)
	if !ok {
		return nil, fmt.Errorf("cannot append int32 column '%s' to a "+
			"column of type %s", x.name, dst.typeName())
	}
	d.data = append(d.data, x.data...)
	return d, nil
}

// Int64 implements the Column interface for []int64 data.
type Int64 struct {
	name string
	data []int64
}

// NewInt64 creates a column with a given name wrapping a given array.
func NewInt64(name string, x []int64) *Int64 {
	return &Int64{ name, x }
}

func (x *Int64) Name() string { return x.name }
func (x *Int64) Len() int { return len(x.data) }
func (x *Int64) Data() interface{} { return x.data }
func (x *Int64) Values() []int64 { return x.data }
func (x *Int64) typeName() string { return "i64" }
func (x *Int64) emptyLike() Column {
	return NewInt64(x.name, []int64{})
}
func (x *Int64) appendTo(dst Column) (Column, error) {
	d, ok := dst.(*Int64)
	if !ok {
		return nil, fmt.Errorf("cannot append int64 column '%s' to a "+
			"column of type %s", x.name, dst.typeName())
	}
	d.data = append(d.data, x.data...)
	return d, nil
}

// SchemaMismatchError is returned when two tables that are supposed to share
// a schema disagree about their column names or types. Reads apply the same
// variable selection to every shard, so this error always indicates an
// internal logic bug rather than bad data, and it is never swallowed.
type SchemaMismatchError struct {
	Expected, Found []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("Two shards of the same read produced different "+
		"schemas: one has columns %v, the other %v. This indicates a bug in "+
		"the reader's selection logic, not a problem with your data.",
		e.Expected, e.Found)
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	cols  []Column
	index map[string]int
}

// New creates a Table from the given columns. All columns must have the same
// length and distinct names.
func New(cols ...Column) (*Table, error) {
	index := map[string]int{}
	for i := range cols {
		if _, ok := index[cols[i].Name()]; ok {
			return nil, fmt.Errorf("The column name '%s' is used more than "+
				"once.", cols[i].Name())
		}
		index[cols[i].Name()] = i
		if cols[i].Len() != cols[0].Len() {
			return nil, fmt.Errorf("The column '%s' has %d rows, but the "+
				"column '%s' has %d.", cols[i].Name(), cols[i].Len(),
				cols[0].Name(), cols[0].Len())
		}
	}
	return &Table{ cols, index }, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.cols) == 0 { return 0 }
	return t.cols[0].Len()
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i := range t.cols {
		names[i] = t.cols[i].Name()
	}
	return names
}

// schema returns "name:type" tags for every column, in order.
func (t *Table) schema() []string {
	s := make([]string, len(t.cols))
	for i := range t.cols {
		s[i] = t.cols[i].Name() + ":" + t.cols[i].typeName()
	}
	return s
}

// Columns returns the table's columns in order. The returned slice aliases
// the table's internal state and should not be modified.
func (t *Table) Columns() []Column { return t.cols }

// Col returns the column with the given name, or nil if there is none.
func (t *Table) Col(name string) Column {
	i, ok := t.index[name]
	if !ok { return nil }
	return t.cols[i]
}

// Float64s returns the []float64 data of the named column. It returns an
// error if the column doesn't exist or has a different type.
func (t *Table) Float64s(name string) ([]float64, error) {
	c := t.Col(name)
	if c == nil {
		return nil, fmt.Errorf("The table has no column named '%s'. Its "+
			"columns are %v.", name, t.Names())
	}
	x, ok := c.(*Float64)
	if !ok {
		return nil, fmt.Errorf("The column '%s' has type %s, not float64.",
			name, c.typeName())
	}
	return x.data, nil
}

// Int32s returns the []int32 data of the named column. It returns an error
// if the column doesn't exist or has a different type.
func (t *Table) Int32s(name string) ([]int32, error) {
	c := t.Col(name)
	if c == nil {
		return nil, fmt.Errorf("The table has no column named '%s'. Its "+
			"columns are %v.", name, t.Names())
	}
	x, ok := c.(*Int32)
	if !ok {
		return nil, fmt.Errorf("The column '%s' has type %s, not int32.",
			name, c.typeName())
	}
	return x.data, nil
}

// Int64s returns the []int64 data of the named column. It returns an error
// if the column doesn't exist or has a different type.
func (t *Table) Int64s(name string) ([]int64, error) {
	c := t.Col(name)
	if c == nil {
		return nil, fmt.Errorf("The table has no column named '%s'. Its "+
			"columns are %v.", name, t.Names())
	}
	x, ok := c.(*Int64)
	if !ok {
		return nil, fmt.Errorf("The column '%s' has type %s, not int64.",
			name, c.typeName())
	}
	return x.data, nil
}

// AddColumn appends a new column to the table. It must have the same length
// as the existing columns and a fresh name.
func (t *Table) AddColumn(c Column) error {
	if _, ok := t.index[c.Name()]; ok {
		return fmt.Errorf("The table already has a column named '%s'.",
			c.Name())
	}
	if len(t.cols) > 0 && c.Len() != t.Len() {
		return fmt.Errorf("The new column '%s' has %d rows, but the table "+
			"has %d.", c.Name(), c.Len(), t.Len())
	}
	t.index[c.Name()] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// sameSchema reports whether two schema tag lists are identical.
func sameSchema(a, b []string) bool {
	if len(a) != len(b) { return false }
	for i := range a {
		if a[i] != b[i] { return false }
	}
	return true
}

// Concat concatenates tables in the order given. Nil entries (shards that
// contributed nothing) are skipped. Every non-nil table must have an
// identical schema, otherwise a SchemaMismatchError is returned. Concat of
// zero non-nil tables returns an empty, schemaless table.
func Concat(tables []*Table) (*Table, error) {
	var first *Table
	for i := range tables {
		if tables[i] != nil {
			first = tables[i]
			break
		}
	}
	if first == nil {
		return &Table{ nil, map[string]int{} }, nil
	}

	out := make([]Column, len(first.cols))
	for i := range first.cols {
		out[i] = first.cols[i].emptyLike()
	}

	refSchema := first.schema()
	for i := range tables {
		if tables[i] == nil { continue }
		if !sameSchema(refSchema, tables[i].schema()) {
			return nil, &SchemaMismatchError{
				Expected: refSchema, Found: tables[i].schema(),
			}
		}
		for j := range out {
			var err error
			out[j], err = tables[i].cols[j].appendTo(out[j])
			if err != nil { return nil, err }
		}
	}

	return New(out...)
}
