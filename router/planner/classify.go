package planner

import (
	"github.com/sdobridnuk/shardroute/catalog"
	"github.com/sdobridnuk/shardroute/pkg/config"
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/qast"
	"github.com/sdobridnuk/shardroute/pkg/routerlog"
)

// Classify decides up front whether the statement is a candidate for
// single-shard routing. Modifications always are: the router path is the
// only one that plans them, and validation rejects the unsupported ones
// later with a precise diagnosis. Read statements qualify only when router
// execution is enabled, no row locking is requested, and every referenced
// relation uses a partition method the boundary search supports.
func Classify(stmt *qast.Statement, snap catalog.Snapshot) (bool, error) {
	if stmt.Command.IsModification() {
		return true, nil
	}

	if !config.RouterConfig().EnableRouterExecution {
		return false, nil
	}
	if stmt.HasForUpdate {
		return false, nil
	}

	for _, rte := range stmt.RangeTable {
		if rte.Kind != qast.RTERelation {
			continue
		}
		meta, err := snap.Metadata(rte.TableID)
		if err != nil {
			return false, err
		}
		switch meta.Method {
		case dmeta.PartitionHash, dmeta.PartitionRange, dmeta.PartitionNone:
		default:
			routerlog.Zero.Debug().
				Str("table", string(rte.TableID)).
				Str("method", meta.Method.String()).
				Msg("partition method not router plannable")
			return false, nil
		}
	}
	return true, nil
}
