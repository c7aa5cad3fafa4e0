// Package catalog is the in-process boundary to the distribution metadata
// store. The planner consumes a coherent, read-only Snapshot per planning
// call; refreshes happening concurrently for other calls are invisible to
// it.
package catalog

import (
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/models/shard"
	"github.com/sdobridnuk/shardroute/pkg/qast"
)

// Snapshot exposes distribution metadata and shard placement state.
type Snapshot interface {
	// Metadata returns the distribution descriptor of a table.
	Metadata(table dmeta.TableID) (*dmeta.Metadata, error)

	// ShardIntervals returns the table's intervals sorted by range
	// boundary.
	ShardIntervals(table dmeta.TableID) ([]*shard.Interval, error)

	// ActivePlacements returns the active replica locations of a shard.
	ActivePlacements(shardID uint64) ([]*shard.Placement, error)

	// FindOwningShard locates the unique interval containing the given
	// partition value, applying the table's hash function first for
	// hash-partitioned tables. A nil interval means no shard covers the
	// value.
	FindOwningShard(table dmeta.TableID, value any) (*shard.Interval, error)

	// PruneShards eliminates intervals that cannot satisfy the given
	// filter predicates on the partition column of the referenced table.
	PruneShards(table dmeta.TableID, rteIndex int, predicates []qast.Node) ([]*shard.Interval, error)

	// ActiveWorkers lists the currently active cluster nodes.
	ActiveWorkers() ([]*shard.Worker, error)
}
