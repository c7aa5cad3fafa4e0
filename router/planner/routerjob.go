package planner

import (
	"github.com/sdobridnuk/shardroute/catalog"
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/models/shard"
	"github.com/sdobridnuk/shardroute/pkg/plan"
	"github.com/sdobridnuk/shardroute/pkg/qast"
	"github.com/sdobridnuk/shardroute/router/rerrors"
)

// routerJob builds the Job for a single shard SELECT, UPDATE or DELETE.
func routerJob(stmt *qast.Statement, rc *RestrictionContext, snap catalog.Snapshot) (*plan.Job, error) {
	requiresCentral := qast.NeedsCentralEvaluation(stmt)

	// A write whose shards all pruned away still gets a task; it runs
	// against a placeholder placement and affects no rows.
	replacePrunedQueryWithDummy := stmt.Command.IsModification()

	placements, anchorShardID, relationShards, err := planRouterQuery(
		stmt, rc, snap, replacePrunedQueryWithDummy)
	if err != nil {
		return nil, err
	}

	job := plan.NewJob(stmt)
	job.RequiresCentralEvaluation = requiresCentral

	// A read whose relations all pruned away provably returns no rows, so
	// there is nothing worth dispatching.
	shardsPresent := len(relationShards) > 0
	if !shardsPresent && stmt.Command == qast.CommandSelect {
		return job, nil
	}

	var task *plan.Task
	if stmt.Command == qast.CommandSelect {
		task = plan.NewTask(plan.TaskRead)
	} else {
		updateOrDeleteRTE := stmt.UpdateOrDeleteEntry()
		if updateOrDeleteRTE == nil {
			return nil, rerrors.Fatalf(
				"cannot find the modified table reference in %s statement", stmt.Command)
		}
		meta, err := snap.Metadata(updateOrDeleteRTE.TableID)
		if err != nil {
			return nil, err
		}

		if meta.Method == dmeta.PartitionNone {
			fromDistributed, err := selectsFromDistributedTable(stmt, snap)
			if err != nil {
				return nil, err
			}
			if fromDistributed {
				return nil, rerrors.Fatalf(
					"cannot perform select on a distributed table and modify a reference table")
			}
		}

		task = plan.NewTask(plan.TaskWrite)
		task.ReplicationModel = meta.ReplicationModel
	}

	task.AnchorShardID = anchorShardID
	task.Placements = placements
	task.RelationShards = relationShards

	job.Tasks = []*plan.Task{task}
	return job, nil
}

// planRouterQuery prunes every referenced relation down to at most one
// shard, resolves the placements holding all of them, and rewrites relation
// references to the chosen shards. With replacePrunedQueryWithDummy set, a
// fully pruned statement is pointed at the first active worker instead of
// failing.
func planRouterQuery(stmt *qast.Statement, rc *RestrictionContext, snap catalog.Snapshot, replacePrunedQueryWithDummy bool) ([]*shard.Placement, uint64, []plan.RelationShard, error) {
	prunedLists, multiShard, err := targetShardIntervals(stmt, rc, snap)
	if err != nil {
		return nil, shard.InvalidShardID, nil, err
	}

	if multiShard {
		return nil, shard.InvalidShardID, nil, multiShardError(stmt, snap)
	}

	shardsPresent := false
	anchorShardID := shard.InvalidShardID
	var relationShards []plan.RelationShard

	for _, prunedList := range prunedLists {
		// Zero shards left for this relation is fine here; the
		// placeholder handling below covers it.
		if len(prunedList) == 0 {
			continue
		}
		shardsPresent = true

		iv := prunedList[0]
		if anchorShardID == shard.InvalidShardID {
			anchorShardID = iv.ID
		}
		relationShards = append(relationShards, plan.RelationShard{
			TableID: iv.TableID,
			ShardID: iv.ID,
		})
	}

	// Pruning bails out per relation, but two range table entries over the
	// same relation may still have resolved to different shards.
	if relationPrunesToMultipleShards(relationShards) {
		return nil, shard.InvalidShardID, nil, rerrors.Deferred(rerrors.RouterCrossShard,
			"cannot run command which targets multiple shards")
	}

	var placements []*shard.Placement
	switch {
	case shardsPresent:
		if placements, err = workersContainingAllShards(prunedLists, snap); err != nil {
			return nil, shard.InvalidShardID, nil, err
		}
	case replacePrunedQueryWithDummy:
		workers, err := snap.ActiveWorkers()
		if err != nil {
			return nil, shard.InvalidShardID, nil, err
		}
		if len(workers) != 0 {
			placements = []*shard.Placement{{
				NodeName: workers[0].Name,
				NodePort: workers[0].Port,
				GroupID:  workers[0].GroupID,
			}}
		}
	default:
		return nil, shard.InvalidShardID, nil, nil
	}

	if len(placements) == 0 {
		return nil, shard.InvalidShardID, nil, rerrors.Deferred(rerrors.RouterNoDatashard,
			"found no worker with all shard placements")
	}

	// An UPDATE or DELETE pending central evaluation keeps its original
	// relation references; the rewrite happens after that round.
	updateOrDelete := stmt.Command == qast.CommandUpdate || stmt.Command == qast.CommandDelete
	if !(updateOrDelete && qast.NeedsCentralEvaluation(stmt)) {
		updateRelationsToShards(stmt, relationShards)
	}

	return placements, anchorShardID, relationShards, nil
}

func multiShardError(stmt *qast.Statement, snap catalog.Snapshot) error {
	de := rerrors.Deferredf(rerrors.RouterCrossShard,
		"cannot run %s command which targets multiple shards", stmt.Command)

	if stmt.Command == qast.CommandUpdate || stmt.Command == qast.CommandDelete {
		if rte := stmt.UpdateOrDeleteEntry(); rte != nil {
			if meta, err := snap.Metadata(rte.TableID); err == nil {
				de = de.WithHint(
					"Consider using an equality filter on partition column \"" +
						meta.PartitionColumn + "\" to target a single shard.")
			}
		}
	}
	return de
}

// targetShardIntervals prunes each restricted relation and returns the
// per-relation leftovers. It bails out with multiShard set as soon as any
// relation keeps more than one shard. A provable contradiction among the
// join-level filters prunes every shard of every relation.
func targetShardIntervals(stmt *qast.Statement, rc *RestrictionContext, snap catalog.Snapshot) ([][]*shard.Interval, bool, error) {
	var prunedLists [][]*shard.Interval

	for _, rel := range rc.Relations {
		intervals, err := snap.ShardIntervals(rel.TableID)
		if err != nil {
			return nil, false, err
		}

		var pruned []*shard.Interval
		if !containsFalseClause(rel.JoinRestrictions) && len(intervals) > 0 {
			if pruned, err = snap.PruneShards(rel.TableID, rel.Index, rel.AllRestrictions()); err != nil {
				return nil, false, err
			}
			if len(pruned) > 1 {
				return nil, true, nil
			}
		}
		prunedLists = append(prunedLists, pruned)
	}

	return prunedLists, false, nil
}

// containsFalseClause detects restriction lists carrying a constant false,
// as produced for contradictions like "WHERE a = 1 AND a = 2" or "AND 1=0".
// Constant pairs are compared width-normalized; a pair the comparison cannot
// decide is never read as a contradiction.
func containsFalseClause(restrictions []qast.Node) bool {
	for _, node := range restrictions {
		if c, ok := node.(*qast.Const); ok && !c.IsNull {
			if v, ok := c.Value.(bool); ok && !v {
				return true
			}
		}
		if op, ok := node.(*qast.OpExpr); ok && op.Op == "=" {
			l, lok := op.Left.(*qast.Const)
			r, rok := op.Right.(*qast.Const)
			if lok && rok && !l.IsNull && !r.IsNull {
				if equal, decided := shard.EqualValues(l.Value, r.Value); decided && !equal {
					return true
				}
			}
		}
	}
	return false
}

// relationPrunesToMultipleShards reports whether the mapping holds the same
// relation resolved to two different shards.
func relationPrunesToMultipleShards(relationShards []plan.RelationShard) bool {
	seen := map[dmeta.TableID]uint64{}
	for _, rs := range relationShards {
		if prev, ok := seen[rs.TableID]; ok && prev != rs.ShardID {
			return true
		}
		seen[rs.TableID] = rs.ShardID
	}
	return false
}

// workersContainingAllShards intersects the active placement lists of every
// resolved shard. An empty result means no single worker holds them all.
func workersContainingAllShards(prunedLists [][]*shard.Interval, snap catalog.Snapshot) ([]*shard.Placement, error) {
	firstShard := true
	var current []*shard.Placement

	for _, prunedList := range prunedLists {
		if len(prunedList) == 0 {
			continue
		}

		next, err := snap.ActivePlacements(prunedList[0].ID)
		if err != nil {
			return nil, err
		}

		if firstShard {
			firstShard = false
			current = next
		} else {
			current = intersectPlacements(current, next)
		}

		if len(current) == 0 {
			break
		}
	}
	return current, nil
}

// intersectPlacements keeps the right-hand placements whose node also
// appears on the left, matching on node name and port. Replication factors
// are small, so the quadratic scan is fine.
func intersectPlacements(lhs []*shard.Placement, rhs []*shard.Placement) []*shard.Placement {
	var out []*shard.Placement
	for _, l := range lhs {
		for _, r := range rhs {
			if r.NodePort == l.NodePort && r.NodeName == l.NodeName {
				out = append(out, r)
			}
		}
	}
	return out
}

// selectsFromDistributedTable reports whether any relation other than the
// modified one is partitioned, i.e. the statement reads a distributed table.
func selectsFromDistributedTable(stmt *qast.Statement, snap catalog.Snapshot) (bool, error) {
	for _, rte := range stmt.RangeTable {
		if rte.Kind != qast.RTERelation {
			continue
		}
		if rte.Access&(qast.AccessUpdate|qast.AccessDelete) != 0 {
			continue
		}
		meta, err := snap.Metadata(rte.TableID)
		if err != nil {
			return false, err
		}
		if meta.Method != dmeta.PartitionNone {
			return true, nil
		}
	}
	return false, nil
}
