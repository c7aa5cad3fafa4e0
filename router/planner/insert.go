package planner

import (
	"github.com/sdobridnuk/shardroute/catalog"
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/models/shard"
	"github.com/sdobridnuk/shardroute/pkg/plan"
	"github.com/sdobridnuk/shardroute/pkg/qast"
	"github.com/sdobridnuk/shardroute/router/rerrors"
)

// routerInsertJob builds the Job for an INSERT. When the partition column
// value is not yet a constant, shard resolution is deferred: the job carries
// no task and requires one central evaluation round first.
func routerInsertJob(stmt *qast.Statement, snap catalog.Snapshot) (*plan.Job, error) {
	result := stmt.ResultEntry()
	if result == nil {
		return nil, rerrors.Fatalf("INSERT has no result relation")
	}
	meta, err := snap.Metadata(result.TableID)
	if err != nil {
		return nil, err
	}

	job := plan.NewJob(stmt)

	prunable, err := canPruneShard(stmt, meta)
	if err != nil {
		return nil, err
	}
	if !prunable {
		// A non-constant sits in the partition column. It must be reduced
		// centrally before any shard can be chosen.
		job.DeferredPruning = true
		job.RequiresCentralEvaluation = true
		return job, nil
	}

	tasks, err := routerInsertTaskList(stmt, meta, snap)
	if err != nil {
		return nil, err
	}

	job.Tasks = tasks
	job.RequiresCentralEvaluation = qast.NeedsCentralEvaluation(stmt)
	return job, nil
}

// canPruneShard reports whether the INSERT's partition column value is
// already a constant.
func canPruneShard(stmt *qast.Statement, meta *dmeta.Metadata) (bool, error) {
	if !meta.HasPartitionColumn() {
		// Reference tables always prune to their single shard.
		return true, nil
	}
	valueExpr, err := extractInsertPartitionValue(stmt, meta)
	if err != nil {
		return false, err
	}
	_, isConst := valueExpr.(*qast.Const)
	return isConst, nil
}

// extractInsertPartitionValue pulls the expression assigned to the partition
// column out of the INSERT target list.
func extractInsertPartitionValue(stmt *qast.Statement, meta *dmeta.Metadata) (qast.Node, error) {
	for _, te := range stmt.TargetList {
		if te.ColumnIndex == meta.PartitionColumnIndex {
			return te.Expr, nil
		}
	}
	return nil, rerrors.Fatalf("cannot perform an INSERT without a partition column value")
}

func routerInsertTaskList(stmt *qast.Statement, meta *dmeta.Metadata, snap catalog.Snapshot) ([]*plan.Task, error) {
	intervals, err := snap.ShardIntervals(meta.TableID)
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		return nil, rerrors.Fatalf(
			"could not find any shards for distributed table \"%s\"", meta.TableID).
			WithHint("Create shards for the table and try again.")
	}

	target, err := findShardForInsert(stmt, meta, intervals, snap)
	if err != nil {
		return nil, err
	}

	task := plan.NewTask(plan.TaskWrite)
	task.AnchorShardID = target.ID
	task.ReplicationModel = meta.ReplicationModel
	task.IsUpsert = stmt.OnConflict != nil
	task.RelationShards = []plan.RelationShard{
		{TableID: meta.TableID, ShardID: target.ID},
	}
	if task.Placements, err = snap.ActivePlacements(target.ID); err != nil {
		return nil, err
	}

	return []*plan.Task{task}, nil
}

// findShardForInsert resolves the single interval the INSERT routes to. The
// partition value must be a non-NULL constant by now; anything else is a
// planning bug or an invalid statement.
func findShardForInsert(stmt *qast.Statement, meta *dmeta.Metadata, intervals []*shard.Interval, snap catalog.Snapshot) (*shard.Interval, error) {
	if meta.Method == dmeta.PartitionNone {
		if len(intervals) != 1 {
			return nil, rerrors.Fatalf("reference table cannot have %d shards", len(intervals))
		}
		return intervals[0], nil
	}

	valueExpr, err := extractInsertPartitionValue(stmt, meta)
	if err != nil {
		return nil, err
	}
	valueConst, ok := valueExpr.(*qast.Const)
	if !ok {
		return nil, rerrors.Fatalf(
			"cannot perform an INSERT with a non-constant in the partition column")
	}
	if valueConst.IsNull {
		return nil, rerrors.Fatalf(
			"cannot perform an INSERT with NULL in the partition column")
	}

	var pruned []*shard.Interval
	switch meta.Method {
	case dmeta.PartitionHash, dmeta.PartitionRange:
		owner, err := snap.FindOwningShard(meta.TableID, valueConst.Value)
		if err != nil {
			return nil, err
		}
		if owner != nil {
			pruned = []*shard.Interval{owner}
		}
	default:
		// Append-distributed intervals may overlap, so the value is
		// pruned as an equality restriction instead.
		equality := &qast.OpExpr{
			Op: "=",
			Left: &qast.ColumnRef{
				RTIndex:     stmt.ResultRelation,
				ColumnIndex: meta.PartitionColumnIndex,
				Name:        meta.PartitionColumn,
			},
			Right: valueConst,
		}
		if pruned, err = snap.PruneShards(meta.TableID, stmt.ResultRelation, []qast.Node{equality}); err != nil {
			return nil, err
		}
	}

	if len(pruned) != 1 {
		targetCountType := "no"
		hint := "Make sure you have created a shard which can receive this partition column value."
		if len(pruned) > 1 {
			targetCountType = "multiple"
			hint = "Make sure the value for partition column \"" + meta.PartitionColumn +
				"\" falls into a single shard."
		}
		return nil, rerrors.Deferredf(rerrors.RouterCrossShard,
			"cannot run INSERT command which targets %s shards", targetCountType).
			WithHint(hint)
	}

	return pruned[0], nil
}
