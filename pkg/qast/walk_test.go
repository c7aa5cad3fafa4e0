package qast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdobridnuk/shardroute/pkg/qast"
)

func TestContainsFunctionsByVolatility(t *testing.T) {
	assert := assert.New(t)

	immutable := &qast.FuncExpr{Name: "upper", Volatility: qast.VolatilityImmutable,
		Args: []qast.Node{&qast.ColumnRef{RTIndex: 1, ColumnIndex: 2}}}
	stable := &qast.FuncExpr{Name: "now", Volatility: qast.VolatilityStable}
	volatile := &qast.FuncExpr{Name: "random", Volatility: qast.VolatilityVolatile}

	for i, c := range []struct {
		node     qast.Node
		volatile bool
		mutable  bool
	}{
		{node: &qast.Const{Value: int64(1)}, volatile: false, mutable: false},
		{node: immutable, volatile: false, mutable: false},
		{node: stable, volatile: false, mutable: true},
		{node: volatile, volatile: true, mutable: true},
		{
			node: &qast.OpExpr{Op: "=", Left: &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1},
				Right: stable},
			volatile: false,
			mutable:  true,
		},
		{
			node:     &qast.BoolExpr{Op: qast.BoolAnd, Args: []qast.Node{immutable, volatile}},
			volatile: true,
			mutable:  true,
		},
	} {
		assert.Equal(c.volatile, qast.ContainsVolatileFunctions(c.node), "tc %d", i)
		assert.Equal(c.mutable, qast.ContainsMutableFunctions(c.node), "tc %d", i)
	}
}

func TestNeedsCentralEvaluation(t *testing.T) {
	assert := assert.New(t)

	for i, c := range []struct {
		stmt     *qast.Statement
		expected bool
	}{
		// constants only
		{
			stmt: &qast.Statement{
				Command: qast.CommandInsert,
				TargetList: []*qast.TargetEntry{
					{ColumnIndex: 1, Expr: &qast.Const{Value: int64(150)}},
				},
			},
			expected: false,
		},
		// unbound parameter
		{
			stmt: &qast.Statement{
				Command: qast.CommandInsert,
				TargetList: []*qast.TargetEntry{
					{ColumnIndex: 1, Expr: &qast.Param{Index: 1}},
				},
			},
			expected: true,
		},
		// stable function in WHERE
		{
			stmt: &qast.Statement{
				Command: qast.CommandSelect,
				Where: &qast.OpExpr{Op: "<",
					Left:  &qast.ColumnRef{RTIndex: 1, ColumnIndex: 2},
					Right: &qast.FuncExpr{Name: "now", Volatility: qast.VolatilityStable}},
			},
			expected: true,
		},
		// immutable function does not force evaluation
		{
			stmt: &qast.Statement{
				Command: qast.CommandSelect,
				Where: &qast.OpExpr{Op: "=",
					Left: &qast.ColumnRef{RTIndex: 1, ColumnIndex: 2},
					Right: &qast.FuncExpr{Name: "abs", Volatility: qast.VolatilityImmutable,
						Args: []qast.Node{&qast.Const{Value: int64(-3)}}}},
			},
			expected: false,
		},
		// RETURNING is inspected too
		{
			stmt: &qast.Statement{
				Command: qast.CommandDelete,
				Returning: []*qast.TargetEntry{
					{Expr: &qast.FuncExpr{Name: "now", Volatility: qast.VolatilityStable}},
				},
			},
			expected: true,
		},
	} {
		assert.Equal(c.expected, qast.NeedsCentralEvaluation(c.stmt), "tc %d", i)
	}
}

func TestFlattenAnd(t *testing.T) {
	assert := assert.New(t)

	a := &qast.OpExpr{Op: "=", Left: &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1}, Right: &qast.Const{Value: int64(1)}}
	b := &qast.OpExpr{Op: ">", Left: &qast.ColumnRef{RTIndex: 1, ColumnIndex: 2}, Right: &qast.Const{Value: int64(5)}}
	c := &qast.Const{Value: true}

	nested := &qast.BoolExpr{Op: qast.BoolAnd, Args: []qast.Node{
		a,
		&qast.BoolExpr{Op: qast.BoolAnd, Args: []qast.Node{b, c}},
	}}
	assert.Equal([]qast.Node{a, b, c}, qast.FlattenAnd(nested))

	// non-AND roots flatten to themselves
	assert.Equal([]qast.Node{a}, qast.FlattenAnd(a))
	or := &qast.BoolExpr{Op: qast.BoolOr, Args: []qast.Node{a, b}}
	assert.Equal([]qast.Node{or}, qast.FlattenAnd(or))
	assert.Nil(qast.FlattenAnd(nil))
}

func TestWalkAborts(t *testing.T) {
	assert := assert.New(t)

	tree := &qast.BoolExpr{Op: qast.BoolAnd, Args: []qast.Node{
		&qast.Const{Value: int64(1)},
		&qast.ColumnRef{RTIndex: 1, ColumnIndex: 1},
		&qast.Const{Value: int64(2)},
	}}

	visited := 0
	aborted := qast.Walk(tree, func(n qast.Node) bool {
		visited++
		_, isColumn := n.(*qast.ColumnRef)
		return isColumn
	})
	assert.True(aborted)
	// root, first const, column; the walk stops before the second const
	assert.Equal(3, visited)
}
