package planner

import (
	"github.com/sdobridnuk/shardroute/pkg/qast"
)

// ReducibilityResult classifies why an assignment expression cannot be
// reduced to a constant by one central evaluation before dispatch.
type ReducibilityResult struct {
	// HasColumnArgument: a stable function call takes a column reference
	// as (possibly indirect) argument, so its value differs per row and
	// cannot be precomputed.
	HasColumnArgument bool

	// HasUnsafeConditional: a CASE or COALESCE contains a non-immutable
	// function. Central evaluation would force branches the row-local
	// evaluation might skip.
	HasUnsafeConditional bool
}

func (r ReducibilityResult) Reducible() bool {
	return !r.HasColumnArgument && !r.HasUnsafeConditional
}

type reduceState struct {
	containsColumn    bool
	columnArgument    bool
	unsafeConditional bool
}

// AnalyzeReducibility walks an assignment expression and reports the ways it
// resists central constant-folding. Volatile functions are not its concern;
// they are rejected outright before reducibility is consulted.
func AnalyzeReducibility(expr qast.Node) ReducibilityResult {
	st := &reduceState{}
	reduceWalk(expr, st)
	return ReducibilityResult{
		HasColumnArgument:    st.columnArgument,
		HasUnsafeConditional: st.unsafeConditional,
	}
}

// reduceWalk returns true when the subtree is irreducible. Conditional
// wrappers around mutable calls are flagged without descending: every branch
// is suspect once one of them is.
func reduceWalk(node qast.Node, st *reduceState) bool {
	if node == nil {
		return false
	}

	switch n := node.(type) {
	case *qast.CoalesceExpr, *qast.CaseExpr:
		if qast.ContainsMutableFunctions(n) {
			st.unsafeConditional = true
			return true
		}
	case *qast.ColumnRef:
		st.containsColumn = true
		return false
	case *qast.FuncExpr:
		switch n.Volatility {
		case qast.VolatilityVolatile:
			return true
		case qast.VolatilityStable:
			// A stable call is centrally computable unless a column
			// flows into it. Walk the arguments into a child state so
			// the column sighting is attributed to this call.
			child := &reduceState{}
			irreducible := reduceChildren(n, child)
			if child.containsColumn || child.columnArgument {
				st.columnArgument = true
			}
			st.unsafeConditional = st.unsafeConditional || child.unsafeConditional
			return irreducible
		}
	}

	return reduceChildren(node, st)
}

func reduceChildren(node qast.Node, st *reduceState) bool {
	irreducible := false
	for _, child := range qast.Children(node) {
		if reduceWalk(child, st) {
			irreducible = true
		}
	}
	return irreducible
}
