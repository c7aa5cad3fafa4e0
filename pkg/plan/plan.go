// Package plan defines the router planner output: a Job wrapping the
// planned statement and the Task(s) to dispatch.
package plan

import (
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/models/shard"
	"github.com/sdobridnuk/shardroute/pkg/qast"
)

type TaskKind int

const (
	TaskRead TaskKind = iota
	TaskWrite
)

func (k TaskKind) String() string {
	switch k {
	case TaskRead:
		return "read"
	case TaskWrite:
		return "write"
	}
	return "invalid"
}

// RelationShard maps one base relation of the statement to the single
// concrete shard it resolved to.
type RelationShard struct {
	TableID dmeta.TableID
	ShardID uint64
}

// Task is one unit of dispatch against one worker. Query is empty until
// the external deparser substitutes the shard-addressed statement text.
type Task struct {
	Kind TaskKind

	AnchorShardID  uint64
	Placements     []*shard.Placement
	RelationShards []RelationShard

	IsUpsert         bool
	ReplicationModel dmeta.ReplicationModel

	Query string
}

func NewTask(kind TaskKind) *Task {
	return &Task{
		Kind:          kind,
		AnchorShardID: shard.InvalidShardID,
	}
}

// Job is the routing plan for one statement. A nil task list means the
// statement provably touches no rows and nothing needs to be dispatched.
type Job struct {
	Statement *qast.Statement
	Tasks     []*Task

	// RequiresCentralEvaluation: some expression must be evaluated once
	// at the coordinating point before dispatch.
	RequiresCentralEvaluation bool

	// DeferredPruning: shard targeting could not complete because the
	// partition value is not yet a constant.
	DeferredPruning bool

	HasReturning bool
}

func NewJob(stmt *qast.Statement) *Job {
	return &Job{
		Statement: stmt,
	}
}
