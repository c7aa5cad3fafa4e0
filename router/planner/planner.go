// Package planner decides whether a statement resolves to exactly one shard
// and, if so, produces the single-task job addressing it. Statements it
// declines come back with a DeferredError carrying the reason; impossible
// catalog states surface as a FatalError.
package planner

import (
	"github.com/sdobridnuk/shardroute/catalog"
	"github.com/sdobridnuk/shardroute/pkg/plan"
	"github.com/sdobridnuk/shardroute/pkg/qast"
	"github.com/sdobridnuk/shardroute/pkg/routerlog"
	"github.com/sdobridnuk/shardroute/router/rerrors"
)

// PlanReadOrWrite plans the statement through the single shard router path.
// A returned *rerrors.DeferredError means the statement is valid but not
// routable this way; a *rerrors.FatalError means planning hit a state a
// consistent catalog cannot produce. Use rerrors.AsDeferred and
// rerrors.AsFatal to discriminate.
func PlanReadOrWrite(stmt *qast.Statement, rc *RestrictionContext, snap catalog.Snapshot) (*plan.Job, error) {
	plannable, err := Classify(stmt, snap)
	if err != nil {
		return nil, err
	}
	if !plannable {
		return nil, rerrors.Deferred(rerrors.RouterNotPlannable,
			"query is not routable to a single shard")
	}

	if stmt.Command.IsModification() {
		return createModifyPlan(stmt, rc, snap)
	}
	return createRouterPlan(stmt, rc, snap)
}

func createModifyPlan(stmt *qast.Statement, rc *RestrictionContext, snap catalog.Snapshot) (*plan.Job, error) {
	de, err := ValidateModification(stmt, snap, false)
	if err != nil {
		return nil, err
	}
	if de != nil {
		return nil, de
	}

	var job *plan.Job
	if stmt.Command == qast.CommandInsert {
		job, err = routerInsertJob(stmt, snap)
	} else {
		job, err = routerJob(stmt, rc, snap)
	}
	if err != nil {
		return nil, err
	}

	job.HasReturning = len(stmt.Returning) > 0

	routerlog.Zero.Debug().
		Str("command", stmt.Command.String()).
		Bool("deferred_pruning", job.DeferredPruning).
		Msg("creating router plan")
	return job, nil
}

func createRouterPlan(stmt *qast.Statement, rc *RestrictionContext, snap catalog.Snapshot) (*plan.Job, error) {
	if de := errorIfModifyingCTE(stmt); de != nil {
		return nil, de
	}

	job, err := routerJob(stmt, rc, snap)
	if err != nil {
		return nil, err
	}

	routerlog.Zero.Debug().
		Str("command", stmt.Command.String()).
		Msg("creating router plan")
	return job, nil
}

// errorIfModifyingCTE rejects read statements with data-modifying WITH
// clauses. Modifying statements must sit at the top level of a CTE, so the
// top-level command of each CTE is the only thing to check.
func errorIfModifyingCTE(stmt *qast.Statement) *rerrors.DeferredError {
	for _, cte := range stmt.CTEs {
		if cte.Command != qast.CommandSelect {
			return rerrors.Deferred(rerrors.RouterUnsupported,
				"data-modifying statements are not supported in the WITH clauses of distributed queries")
		}
	}
	return nil
}
