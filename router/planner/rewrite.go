package planner

import (
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/plan"
	"github.com/sdobridnuk/shardroute/pkg/qast"
	"github.com/sdobridnuk/shardroute/pkg/routerlog"
)

// updateRelationsToShards rewrites the statement's relation references to
// the shards they resolved to. A relation with no resolved shard is replaced
// with an empty placeholder subquery: the statement still runs, against no
// rows. This is the only mutation the planner performs on the statement, and
// only on the success path.
func updateRelationsToShards(stmt *qast.Statement, relationShards []plan.RelationShard) {
	resolved := map[dmeta.TableID]uint64{}
	for _, rs := range relationShards {
		resolved[rs.TableID] = rs.ShardID
	}

	for _, rte := range stmt.RangeTable {
		if rte.Kind != qast.RTERelation {
			continue
		}
		shardID, ok := resolved[rte.TableID]
		if !ok {
			// A write target keeps its relation shape; the filters that
			// pruned it already guarantee zero affected rows.
			if rte.Access&(qast.AccessUpdate|qast.AccessDelete) != 0 {
				continue
			}
			routerlog.Zero.Debug().
				Str("table", string(rte.TableID)).
				Msg("relation pruned to zero shards, substituting empty subquery")
			rte.Kind = qast.RTESubquery
			continue
		}
		rte.ShardID = shardID
	}
}
