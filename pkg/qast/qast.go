// Package qast defines the semantic statement tree the router planner
// operates on. The caller (the outer planning driver) builds it from a
// parsed and analyzed query; the planner reads it and, on the success path
// only, rewrites base-relation table references to point at concrete shards.
package qast

import "github.com/sdobridnuk/shardroute/pkg/models/dmeta"

type Command int

const (
	CommandSelect Command = iota
	CommandInsert
	CommandUpdate
	CommandDelete
)

func (c Command) String() string {
	switch c {
	case CommandSelect:
		return "SELECT"
	case CommandInsert:
		return "INSERT"
	case CommandUpdate:
		return "UPDATE"
	case CommandDelete:
		return "DELETE"
	}
	return "UNKNOWN"
}

// IsModification reports whether the command writes.
func (c Command) IsModification() bool {
	return c == CommandInsert || c == CommandUpdate || c == CommandDelete
}

// Volatility is the determinism class of a function: an immutable function
// is a pure function of its arguments, a stable function is consistent
// within one statement, a volatile function may differ per call.
type Volatility int

const (
	VolatilityImmutable Volatility = iota
	VolatilityStable
	VolatilityVolatile
)

// Node is the tagged union of expression tree nodes.
type Node interface {
	isNode()
}

type Const struct {
	Value  any
	IsNull bool
}

// ColumnRef references a column of a range table entry. RTIndex is the
// 1-based index into the statement's range table, ColumnIndex the 1-based
// attribute number within the relation.
type ColumnRef struct {
	RTIndex     int
	ColumnIndex int
	Name        string
}

// Param is a yet-unbound statement parameter ($n).
type Param struct {
	Index int
}

type FuncExpr struct {
	Name       string
	Volatility Volatility
	Args       []Node
}

type OpExpr struct {
	Op    string
	Left  Node
	Right Node
}

type BoolOp int

const (
	BoolAnd BoolOp = iota
	BoolOr
	BoolNot
)

type BoolExpr struct {
	Op   BoolOp
	Args []Node
}

// CaseExpr holds every branch expression of a CASE: test expressions,
// results and the default, flattened. The planner never evaluates a CASE;
// it only inspects the branches.
type CaseExpr struct {
	Args []Node
}

type CoalesceExpr struct {
	Args []Node
}

func (*Const) isNode()        {}
func (*ColumnRef) isNode()    {}
func (*Param) isNode()        {}
func (*FuncExpr) isNode()     {}
func (*OpExpr) isNode()       {}
func (*BoolExpr) isNode()     {}
func (*CaseExpr) isNode()     {}
func (*CoalesceExpr) isNode() {}

type RTEKind int

const (
	RTERelation RTEKind = iota
	RTESubquery
	RTEJoin
	RTEFunction
	RTEValues
	RTECTE
)

func (k RTEKind) String() string {
	switch k {
	case RTERelation:
		return "relation"
	case RTESubquery:
		return "subquery"
	case RTEJoin:
		return "join"
	case RTEFunction:
		return "function"
	case RTEValues:
		return "values"
	case RTECTE:
		return "cte"
	}
	return "invalid"
}

type AccessMode uint8

const (
	AccessRead AccessMode = 1 << iota
	AccessUpdate
	AccessDelete
)

// RangeTableEntry is one entry of a statement's table list. ShardID stays
// zero until the planner resolves the entry to a concrete shard on the
// success path.
type RangeTableEntry struct {
	Kind    RTEKind
	TableID dmeta.TableID
	IsView  bool
	Access  AccessMode

	ShardID uint64
}

// TargetEntry is one output or assignment expression. ColumnIndex is the
// 1-based attribute number of the assigned column for INSERT/UPDATE target
// lists. Junk entries are planner-added bookkeeping columns and are skipped
// by validation.
type TargetEntry struct {
	Column      string
	ColumnIndex int
	Expr        Node
	Junk        bool
}

// OnConflictClause carries the conflict-resolution part of an upsert.
type OnConflictClause struct {
	ArbiterWhere Node
	Where        Node
	Set          []*TargetEntry
}

type CommonTableExpr struct {
	Name    string
	Command Command
}

// Statement is one DML operation. ResultRelation indexes the modified
// range table entry (1-based), or is zero for SELECT.
type Statement struct {
	Command        Command
	RangeTable     []*RangeTableEntry
	ResultRelation int

	TargetList []*TargetEntry
	Where      Node

	// Values holds the VALUES rows feeding an INSERT; more than one row
	// makes the statement a multi-row insert.
	Values [][]Node

	Returning  []*TargetEntry
	OnConflict *OnConflictClause
	CTEs       []*CommonTableExpr

	HasSubLinks  bool
	HasForUpdate bool
}

// ResultEntry returns the modified range table entry, or nil for SELECT.
func (s *Statement) ResultEntry() *RangeTableEntry {
	if s.ResultRelation < 1 || s.ResultRelation > len(s.RangeTable) {
		return nil
	}
	return s.RangeTable[s.ResultRelation-1]
}

// UpdateOrDeleteEntry returns the first range table entry requiring update
// or delete access, or nil.
func (s *Statement) UpdateOrDeleteEntry() *RangeTableEntry {
	for _, rte := range s.RangeTable {
		if rte.Access&(AccessUpdate|AccessDelete) != 0 {
			return rte
		}
	}
	return nil
}

// ExpressionRoots returns every top-level expression of the statement:
// target list, WHERE, VALUES rows, RETURNING and conflict clauses.
func (s *Statement) ExpressionRoots() []Node {
	var roots []Node
	for _, te := range s.TargetList {
		roots = append(roots, te.Expr)
	}
	if s.Where != nil {
		roots = append(roots, s.Where)
	}
	for _, row := range s.Values {
		roots = append(roots, row...)
	}
	for _, te := range s.Returning {
		roots = append(roots, te.Expr)
	}
	if s.OnConflict != nil {
		for _, te := range s.OnConflict.Set {
			roots = append(roots, te.Expr)
		}
		if s.OnConflict.ArbiterWhere != nil {
			roots = append(roots, s.OnConflict.ArbiterWhere)
		}
		if s.OnConflict.Where != nil {
			roots = append(roots, s.OnConflict.Where)
		}
	}
	return roots
}
