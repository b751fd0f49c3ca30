package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustNew(t *testing.T, cols ...Column) *Table {
	tab, err := New(cols...)
	require.NoError(t, err)
	return tab
}

func TestNewRejectsBadColumns(t *testing.T) {
	_, err := New(
		NewFloat64("rho", []float64{1, 2}),
		NewFloat64("rho", []float64{3, 4}),
	)
	if err == nil {
		t.Errorf("Expected New() to reject duplicate column names.")
	}

	_, err = New(
		NewFloat64("rho", []float64{1, 2}),
		NewInt32("level", []int32{3}),
	)
	if err == nil {
		t.Errorf("Expected New() to reject mismatched column lengths.")
	}
}

func TestAccessors(t *testing.T) {
	tab := mustNew(t,
		NewInt32("level", []int32{3, 3, 4}),
		NewInt64("id", []int64{10, 11, 12}),
		NewFloat64("rho", []float64{1, 2, 3}),
	)

	require.Equal(t, 3, tab.Len())
	require.Equal(t, []string{"level", "id", "rho"}, tab.Names())

	level, err := tab.Int32s("level")
	require.NoError(t, err)
	require.Equal(t, []int32{3, 3, 4}, level)

	id, err := tab.Int64s("id")
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11, 12}, id)

	rho, err := tab.Float64s("rho")
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, rho)

	// Wrong types and missing columns both fail.
	_, err = tab.Float64s("level")
	require.Error(t, err)
	_, err = tab.Int32s("vx")
	require.Error(t, err)
	require.Nil(t, tab.Col("vx"))
}

func TestAddColumn(t *testing.T) {
	tab := mustNew(t, NewFloat64("rho", []float64{1, 2}))

	require.NoError(t, tab.AddColumn(NewFloat64("p", []float64{3, 4})))
	require.Error(t, tab.AddColumn(NewFloat64("p", []float64{5, 6})))
	require.Error(t, tab.AddColumn(NewFloat64("vx", []float64{5})))

	p, err := tab.Float64s("p")
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4}, p)
}

func TestConcat(t *testing.T) {
	a := mustNew(t,
		NewInt32("level", []int32{3, 3}),
		NewFloat64("rho", []float64{1, 2}),
	)
	b := mustNew(t,
		NewInt32("level", []int32{4}),
		NewFloat64("rho", []float64{5}),
	)

	// Nil entries stand in for shards that contributed no rows.
	out, err := Concat([]*Table{nil, a, nil, b})
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	level, err := out.Int32s("level")
	require.NoError(t, err)
	require.Equal(t, []int32{3, 3, 4}, level)

	rho, err := out.Float64s("rho")
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 5}, rho)
}

func TestConcatSchemaMismatch(t *testing.T) {
	a := mustNew(t, NewFloat64("rho", []float64{1}))
	b := mustNew(t, NewFloat64("p", []float64{1}))

	_, err := Concat([]*Table{a, b})
	mismatch := &SchemaMismatchError{}
	if err == nil {
		t.Fatalf("Expected Concat() of different schemas to fail.")
	} else if !errors.As(err, &mismatch) {
		t.Fatalf("Expected a SchemaMismatchError, got: %s", err.Error())
	}

	// Same name, different type is also a mismatch.
	c := mustNew(t, NewInt32("rho", []int32{1}))
	_, err = Concat([]*Table{a, c})
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected a SchemaMismatchError for a type change, got: %v",
			err)
	}
}

func TestConcatAllNil(t *testing.T) {
	out, err := Concat([]*Table{nil, nil})
	require.NoError(t, err)
	require.Equal(t, 0, out.Len())
}
