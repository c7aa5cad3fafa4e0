package planner

import (
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/qast"
)

// RelationRestriction collects the filter conjuncts the outer planning
// driver attributed to one base relation of the statement.
type RelationRestriction struct {
	// Index is the relation's 1-based position in the statement's range
	// table.
	Index   int
	TableID dmeta.TableID

	// Restrictions holds the base-quals constraining this relation alone,
	// JoinRestrictions the quals arriving through joins. Both lists are
	// AND-conjuncts.
	Restrictions     []qast.Node
	JoinRestrictions []qast.Node
}

// RestrictionContext is the per-statement view of relation restrictions,
// produced alongside the statement tree by the outer driver.
type RestrictionContext struct {
	Relations []*RelationRestriction
}

// AllRestrictions returns base and join restrictions combined.
func (rr *RelationRestriction) AllRestrictions() []qast.Node {
	if rr == nil {
		return nil
	}
	out := append([]qast.Node(nil), rr.Restrictions...)
	return append(out, rr.JoinRestrictions...)
}
