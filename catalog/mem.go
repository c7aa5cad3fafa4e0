package catalog

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/models/hashfn"
	"github.com/sdobridnuk/shardroute/pkg/models/shard"
	"github.com/sdobridnuk/shardroute/pkg/qast"
	"github.com/sdobridnuk/shardroute/pkg/routerlog"
)

// Mem is an in-memory Snapshot, usable both as a standalone catalog for a
// single-node deployment and as the planner-facing cache in front of a
// durable store.
type Mem struct {
	mu sync.RWMutex

	tables     map[dmeta.TableID]*dmeta.Metadata
	intervals  map[dmeta.TableID][]*shard.Interval
	placements map[uint64][]*shard.Placement
	workers    []*shard.Worker
}

var _ Snapshot = &Mem{}

func NewMem() *Mem {
	return &Mem{
		tables:     map[dmeta.TableID]*dmeta.Metadata{},
		intervals:  map[dmeta.TableID][]*shard.Interval{},
		placements: map[uint64][]*shard.Placement{},
	}
}

func (m *Mem) AddTable(meta *dmeta.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[meta.TableID]; ok {
		return errors.Errorf("table \"%s\" is already distributed", meta.TableID)
	}
	if _, err := hashfn.ByName(meta.HashFunction); err != nil {
		return err
	}
	m.tables[meta.TableID] = meta

	routerlog.Zero.Debug().
		Str("table", string(meta.TableID)).
		Str("method", meta.Method.String()).
		Msg("registered distributed table")
	return nil
}

// AddShard registers one interval, keeping the table's interval list sorted
// by lower bound. Bounds of hash-partitioned tables are given in the hashed
// domain.
func (m *Mem) AddShard(iv *shard.Interval) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, ok := m.tables[iv.TableID]
	if !ok {
		return errors.Errorf("no distribution metadata for table \"%s\"", iv.TableID)
	}
	ctype, err := m.boundColumnType(meta)
	if err != nil {
		return err
	}

	ivs := append(m.intervals[iv.TableID], iv)
	shard.SortIntervals(ivs, ctype)
	m.intervals[iv.TableID] = ivs
	return nil
}

func (m *Mem) AddPlacement(p *shard.Placement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placements[p.ShardID] = append(m.placements[p.ShardID], p)
}

func (m *Mem) AddWorker(w *shard.Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = append(m.workers, w)
}

func (m *Mem) Metadata(table dmeta.TableID) (*dmeta.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.tables[table]
	if !ok {
		return nil, errors.Errorf("no distribution metadata for table \"%s\"", table)
	}
	return meta, nil
}

func (m *Mem) ShardIntervals(table dmeta.TableID) ([]*shard.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tables[table]; !ok {
		return nil, errors.Errorf("no distribution metadata for table \"%s\"", table)
	}
	return append([]*shard.Interval(nil), m.intervals[table]...), nil
}

func (m *Mem) ActivePlacements(shardID uint64) ([]*shard.Placement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*shard.Placement
	for _, p := range m.placements[shardID] {
		if p.State == shard.PlacementActive {
			active = append(active, p)
		}
	}
	return active, nil
}

func (m *Mem) ActiveWorkers() ([]*shard.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*shard.Worker(nil), m.workers...), nil
}

func (m *Mem) FindOwningShard(table dmeta.TableID, value any) (*shard.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.tables[table]
	if !ok {
		return nil, errors.Errorf("no distribution metadata for table \"%s\"", table)
	}
	ivs := m.intervals[table]

	switch meta.Method {
	case dmeta.PartitionNone:
		if len(ivs) == 0 {
			return nil, nil
		}
		return ivs[0], nil
	case dmeta.PartitionHash, dmeta.PartitionRange:
		hf, err := hashfn.ByName(meta.HashFunction)
		if err != nil {
			return nil, err
		}
		searched := value
		ctype := meta.ColType
		if meta.Method == dmeta.PartitionHash {
			if searched, err = hashfn.Apply(value, meta.ColType, hf); err != nil {
				return nil, err
			}
			ctype = hashfn.HashedColumnType(meta.ColType, hf)
		}
		return shard.SearchInterval(ivs, searched, ctype)
	case dmeta.PartitionAppend:
		return nil, errors.Errorf(
			"append-distributed table \"%s\" has no unique owning shard per value", table)
	default:
		return nil, errors.Errorf("unknown partition method %d", meta.Method)
	}
}

// PruneShards drops every interval that cannot hold a row satisfying all of
// the given predicates. Predicates not constraining the table's partition
// column are ignored; they never widen the result.
func (m *Mem) PruneShards(table dmeta.TableID, rteIndex int, predicates []qast.Node) ([]*shard.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.tables[table]
	if !ok {
		return nil, errors.Errorf("no distribution metadata for table \"%s\"", table)
	}
	ctype, err := m.boundColumnType(meta)
	if err != nil {
		return nil, err
	}

	candidates := append([]*shard.Interval(nil), m.intervals[table]...)
	for _, pred := range predicates {
		op, c, ok := partitionColumnPredicate(pred, rteIndex, meta.PartitionColumnIndex)
		if !ok {
			continue
		}
		if c.IsNull {
			// No partition column value equals or orders against NULL.
			candidates = nil
			break
		}
		candidates, err = m.applyPredicate(meta, ctype, candidates, op, c.Value)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}
	}

	routerlog.Zero.Debug().
		Str("table", string(table)).
		Int("shards", len(candidates)).
		Msg("pruned shard intervals")
	return candidates, nil
}

func (m *Mem) applyPredicate(meta *dmeta.Metadata, ctype string, ivs []*shard.Interval, op string, value any) ([]*shard.Interval, error) {
	if meta.Method == dmeta.PartitionHash {
		// Hashing destroys ordering, only equality prunes.
		if op != "=" {
			return ivs, nil
		}
		hf, err := hashfn.ByName(meta.HashFunction)
		if err != nil {
			return nil, err
		}
		if value, err = hashfn.Apply(value, meta.ColType, hf); err != nil {
			return nil, err
		}
	}

	var kept []*shard.Interval
	for _, iv := range ivs {
		sat, err := intervalSatisfies(iv, op, value, ctype)
		if err != nil {
			return nil, err
		}
		if sat {
			kept = append(kept, iv)
		}
	}
	return kept, nil
}

// intervalSatisfies reports whether some point of the interval can satisfy
// `column op value`, bounds inclusive.
func intervalSatisfies(iv *shard.Interval, op string, value any, ctype string) (bool, error) {
	switch op {
	case "=":
		return iv.Contains(value, ctype)
	case "<", "<=":
		if !iv.MinExists {
			return true, nil
		}
		c, err := shard.Cmp(iv.Min, value, ctype)
		if err != nil {
			return false, err
		}
		if op == "<" {
			return c < 0, nil
		}
		return c <= 0, nil
	case ">", ">=":
		if !iv.MaxExists {
			return true, nil
		}
		c, err := shard.Cmp(iv.Max, value, ctype)
		if err != nil {
			return false, err
		}
		if op == ">" {
			return c > 0, nil
		}
		return c >= 0, nil
	default:
		// Unrecognized operator, cannot prune.
		return true, nil
	}
}

// partitionColumnPredicate matches a `column op constant` conjunct against
// the partition column of the range table entry at rteIndex, normalizing
// `constant op column` by flipping the operator.
func partitionColumnPredicate(pred qast.Node, rteIndex int, colIndex int) (string, *qast.Const, bool) {
	opExpr, ok := pred.(*qast.OpExpr)
	if !ok {
		return "", nil, false
	}

	if col, ok := opExpr.Left.(*qast.ColumnRef); ok {
		if c, ok := opExpr.Right.(*qast.Const); ok &&
			col.RTIndex == rteIndex && col.ColumnIndex == colIndex {
			return opExpr.Op, c, true
		}
	}
	if col, ok := opExpr.Right.(*qast.ColumnRef); ok {
		if c, ok := opExpr.Left.(*qast.Const); ok &&
			col.RTIndex == rteIndex && col.ColumnIndex == colIndex {
			return flipOperator(opExpr.Op), c, true
		}
	}
	return "", nil, false
}

func flipOperator(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}

func (m *Mem) boundColumnType(meta *dmeta.Metadata) (string, error) {
	hf, err := hashfn.ByName(meta.HashFunction)
	if err != nil {
		return "", err
	}
	if meta.Method == dmeta.PartitionHash {
		return hashfn.HashedColumnType(meta.ColType, hf), nil
	}
	return meta.ColType, nil
}
