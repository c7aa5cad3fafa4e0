package planner

import (
	"reflect"

	"github.com/sdobridnuk/shardroute/catalog"
	"github.com/sdobridnuk/shardroute/pkg/config"
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/qast"
	"github.com/sdobridnuk/shardroute/router/rerrors"
)

// ValidateModification returns nil if the modification only contains
// supported features, otherwise a description of the rejection. UPDATE and
// DELETE tolerate subqueries and joins as long as they stay on one shard;
// multiShard reports that pruning resolved some relation to more than one
// shard, which withdraws that tolerance.
func ValidateModification(stmt *qast.Statement, snap catalog.Snapshot, multiShard bool) (*rerrors.DeferredError, error) {
	updateOrDelete := stmt.Command == qast.CommandUpdate || stmt.Command == qast.CommandDelete

	partitionColumnIndex := 0
	if result := stmt.ResultEntry(); result != nil {
		meta, err := snap.Metadata(result.TableID)
		if err != nil {
			return nil, err
		}
		partitionColumnIndex = meta.PartitionColumnIndex
	}

	if stmt.HasSubLinks {
		if !updateOrDelete || multiShard {
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"cannot perform distributed planning for the given modifications").
				WithDetail("Subqueries are not supported in distributed modifications."), nil
		}
	}

	if len(stmt.CTEs) != 0 {
		return rerrors.Deferred(rerrors.RouterUnsupported,
			"common table expressions are not supported in distributed modifications"), nil
	}

	hasValuesScan := false
	queryTableCount := 0
	for _, rte := range stmt.RangeTable {
		switch rte.Kind {
		case qast.RTERelation:
			meta, err := snap.Metadata(rte.TableID)
			if err != nil {
				return nil, err
			}
			if meta.Method == dmeta.PartitionNone && !config.RouterConfig().Coordinator {
				return rerrors.Deferred(rerrors.RouterUnsupported,
					"cannot perform distributed planning for the given modification").
					WithDetail("Modifications to reference tables are supported only from the coordinator."), nil
			}

			queryTableCount++

			if rte.IsView {
				return rerrors.Deferred(rerrors.RouterUnsupported,
					"cannot modify views over distributed tables"), nil
			}
		case qast.RTEValues:
			hasValuesScan = true
		default:
			if updateOrDelete && !multiShard {
				continue
			}

			var detail string
			switch rte.Kind {
			case qast.RTESubquery:
				detail = "Subqueries are not supported in distributed modifications."
			case qast.RTEJoin:
				detail = "Joins are not supported in distributed modifications."
			case qast.RTEFunction:
				detail = "Functions must not appear in the FROM clause of a distributed modifications."
			default:
				detail = "Unrecognized range table entry."
			}
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"cannot perform distributed planning for the given modifications").
				WithDetail(detail), nil
		}
	}

	// Upserts legitimately carry a second range table entry for the
	// excluded pseudo-relation, so INSERT is exempt here.
	if stmt.Command != qast.CommandInsert && queryTableCount != 1 {
		if !updateOrDelete || multiShard {
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"cannot perform distributed planning for the given modification").
				WithDetail("Joins are not supported in distributed modifications."), nil
		}
	}

	if hasValuesScan || len(stmt.Values) > 1 {
		// Volatile calls in single-row INSERTs are evaluated once and
		// replaced with a constant. Multiple rows would all receive that
		// one value, so the multi-row form stays rejected.
		return rerrors.Deferred(rerrors.RouterUnsupported,
			"cannot perform distributed planning for the given modification").
			WithDetail("Multi-row INSERTs to distributed tables are not supported."), nil
	}

	specifiesPartitionValue := false
	var reducibility ReducibilityResult

	for _, te := range stmt.TargetList {
		if te.Junk {
			continue
		}

		targetEntryPartitionColumn := partitionColumnIndex > 0 &&
			te.ColumnIndex == partitionColumnIndex

		if stmt.Command == qast.CommandUpdate && qast.ContainsVolatileFunctions(te.Expr) {
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"functions used in UPDATE queries on distributed tables must not be VOLATILE"), nil
		}

		if stmt.Command == qast.CommandUpdate && targetEntryPartitionColumn &&
			targetEntryChangesValue(te, stmt.ResultRelation, partitionColumnIndex, stmt.Where) {
			specifiesPartitionValue = true
		}

		if stmt.Command == qast.CommandUpdate {
			reducibility = mergeReducibility(reducibility, AnalyzeReducibility(te.Expr))
		}
	}

	if stmt.Where != nil {
		if qast.ContainsVolatileFunctions(stmt.Where) {
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"functions used in the WHERE clause of modification queries on distributed tables must not be VOLATILE"), nil
		}
		reducibility = mergeReducibility(reducibility, AnalyzeReducibility(stmt.Where))
	}

	if reducibility.HasColumnArgument {
		return rerrors.Deferred(rerrors.RouterUnsupported,
			"STABLE functions used in UPDATE queries cannot be called with column references"), nil
	}

	if reducibility.HasUnsafeConditional {
		return rerrors.Deferred(rerrors.RouterUnsupported,
			"non-IMMUTABLE functions are not allowed in CASE or COALESCE statements"), nil
	}

	for _, te := range stmt.Returning {
		if qast.ContainsMutableFunctions(te.Expr) {
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"non-IMMUTABLE functions are not allowed in the RETURNING clause"), nil
		}
	}

	if stmt.Command == qast.CommandInsert && stmt.OnConflict != nil {
		for _, te := range stmt.OnConflict.Set {
			setTargetEntryPartitionColumn := partitionColumnIndex > 0 &&
				te.ColumnIndex == partitionColumnIndex

			if setTargetEntryPartitionColumn {
				// "DO UPDATE SET part_col = table.part_col" keeps the
				// value; any other assignment moves the row.
				if col, ok := te.Expr.(*qast.ColumnRef); ok &&
					col.ColumnIndex == partitionColumnIndex {
					specifiesPartitionValue = false
				} else {
					specifiesPartitionValue = true
				}
				continue
			}

			// Plain column copies such as "DO UPDATE SET col_1 =
			// table.col_2" are harmless.
			if _, ok := te.Expr.(*qast.ColumnRef); ok {
				continue
			}
			if qast.ContainsMutableFunctions(te.Expr) {
				return rerrors.Deferred(rerrors.RouterUnsupported,
					"functions used in the DO UPDATE SET clause of INSERTs on distributed tables must be marked IMMUTABLE"), nil
			}
		}

		if qast.ContainsMutableFunctions(stmt.OnConflict.ArbiterWhere) ||
			qast.ContainsMutableFunctions(stmt.OnConflict.Where) {
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"functions used in the WHERE clause of the ON CONFLICT clause of INSERTs on distributed tables must be marked IMMUTABLE"), nil
		}
	}

	if specifiesPartitionValue {
		return rerrors.Deferred(rerrors.RouterUnsupported,
			"modifying the partition value of rows is not allowed"), nil
	}

	return nil, nil
}

func mergeReducibility(a, b ReducibilityResult) ReducibilityResult {
	return ReducibilityResult{
		HasColumnArgument:    a.HasColumnArgument || b.HasColumnArgument,
		HasUnsafeConditional: a.HasUnsafeConditional || b.HasUnsafeConditional,
	}
}

// targetEntryChangesValue reports whether the assignment may change the
// partition column value of some affected row. Self-assignments and
// assignments of a constant the WHERE clause already pins the column to do
// not change it.
func targetEntryChangesValue(te *qast.TargetEntry, resultIndex int, partitionColumnIndex int, where qast.Node) bool {
	switch setExpr := te.Expr.(type) {
	case *qast.ColumnRef:
		if setExpr.ColumnIndex == partitionColumnIndex {
			// SET col = table.col
			return false
		}
	case *qast.Const:
		if setExpr.IsNull {
			return true
		}
		// SET col = <x> WHERE col = <x> AND ... keeps the value. Only an
		// equality conjunct on the same constant implies that.
		for _, conjunct := range qast.FlattenAnd(where) {
			op, c, ok := equalityOnColumn(conjunct, resultIndex, partitionColumnIndex)
			if !ok || op != "=" || c.IsNull {
				continue
			}
			if reflect.DeepEqual(c.Value, setExpr.Value) {
				return false
			}
		}
	}
	return true
}

// equalityOnColumn matches `column op constant` or its mirror against the
// given range table index and attribute number.
func equalityOnColumn(node qast.Node, rtIndex int, columnIndex int) (string, *qast.Const, bool) {
	opExpr, ok := node.(*qast.OpExpr)
	if !ok {
		return "", nil, false
	}
	if col, ok := opExpr.Left.(*qast.ColumnRef); ok {
		if c, ok := opExpr.Right.(*qast.Const); ok &&
			col.RTIndex == rtIndex && col.ColumnIndex == columnIndex {
			return opExpr.Op, c, true
		}
	}
	if col, ok := opExpr.Right.(*qast.ColumnRef); ok {
		if c, ok := opExpr.Left.(*qast.Const); ok &&
			col.RTIndex == rtIndex && col.ColumnIndex == columnIndex {
			return opExpr.Op, c, true
		}
	}
	return "", nil, false
}
