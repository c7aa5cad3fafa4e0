package qast

// Children returns the direct child expressions of a node.
func Children(node Node) []Node {
	switch n := node.(type) {
	case *FuncExpr:
		return n.Args
	case *OpExpr:
		var args []Node
		if n.Left != nil {
			args = append(args, n.Left)
		}
		if n.Right != nil {
			args = append(args, n.Right)
		}
		return args
	case *BoolExpr:
		return n.Args
	case *CaseExpr:
		return n.Args
	case *CoalesceExpr:
		return n.Args
	default:
		return nil
	}
}

// Walk traverses the expression tree depth-first, calling fn on every node.
// A true return from fn aborts the walk; Walk reports whether any call
// aborted.
func Walk(node Node, fn func(Node) bool) bool {
	if node == nil {
		return false
	}
	if fn(node) {
		return true
	}
	for _, child := range Children(node) {
		if Walk(child, fn) {
			return true
		}
	}
	return false
}

// ContainsVolatileFunctions reports whether any function call in the tree
// is volatile.
func ContainsVolatileFunctions(node Node) bool {
	return Walk(node, func(n Node) bool {
		f, ok := n.(*FuncExpr)
		return ok && f.Volatility == VolatilityVolatile
	})
}

// ContainsMutableFunctions reports whether any function call in the tree is
// stable or volatile, i.e. not guaranteed to evaluate identically on every
// replica.
func ContainsMutableFunctions(node Node) bool {
	return Walk(node, func(n Node) bool {
		f, ok := n.(*FuncExpr)
		return ok && f.Volatility != VolatilityImmutable
	})
}

// ContainsColumnRefs reports whether the tree references any column.
func ContainsColumnRefs(node Node) bool {
	return Walk(node, func(n Node) bool {
		_, ok := n.(*ColumnRef)
		return ok
	})
}

// NeedsCentralEvaluation reports whether some expression of the statement
// must be reduced to a constant once, centrally, before dispatch: any
// unbound parameter or any non-immutable function call qualifies.
func NeedsCentralEvaluation(stmt *Statement) bool {
	for _, root := range stmt.ExpressionRoots() {
		aborted := Walk(root, func(n Node) bool {
			switch e := n.(type) {
			case *Param:
				return true
			case *FuncExpr:
				return e.Volatility != VolatilityImmutable
			}
			return false
		})
		if aborted {
			return true
		}
	}
	return false
}

// FlattenAnd decomposes a conjunction into its conjuncts. Non-AND nodes
// flatten to themselves.
func FlattenAnd(node Node) []Node {
	if node == nil {
		return nil
	}
	if b, ok := node.(*BoolExpr); ok && b.Op == BoolAnd {
		var out []Node
		for _, arg := range b.Args {
			out = append(out, FlattenAnd(arg)...)
		}
		return out
	}
	return []Node{node}
}
