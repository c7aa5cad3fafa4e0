package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdobridnuk/shardroute/catalog"
	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/models/shard"
	"github.com/sdobridnuk/shardroute/pkg/qast"
)

const ordersTable = dmeta.TableID("public.orders")

// ordersCatalog builds a two shard hash-distributed table with identity
// hashing, so partition values land in the intervals unchanged.
func ordersCatalog(t *testing.T) *catalog.Mem {
	t.Helper()
	assert := assert.New(t)

	mem := catalog.NewMem()
	assert.NoError(mem.AddTable(&dmeta.Metadata{
		TableID:              ordersTable,
		Method:               dmeta.PartitionHash,
		PartitionColumn:      "customer_id",
		PartitionColumnIndex: 1,
		ColType:              dmeta.ColumnTypeInteger,
		HashFunction:         "ident",
		ReplicationModel:     dmeta.ReplicationStatement,
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: ordersTable, ID: 101,
		Min: int64(0), Max: int64(99), MinExists: true, MaxExists: true,
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: ordersTable, ID: 102,
		Min: int64(100), Max: int64(199), MinExists: true, MaxExists: true,
	}))
	return mem
}

func customerIDEquals(value int64) qast.Node {
	return &qast.OpExpr{
		Op:    "=",
		Left:  &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1, Name: "customer_id"},
		Right: &qast.Const{Value: value},
	}
}

func TestMemMetadata(t *testing.T) {
	assert := assert.New(t)
	mem := ordersCatalog(t)

	meta, err := mem.Metadata(ordersTable)
	assert.NoError(err)
	assert.Equal(dmeta.PartitionHash, meta.Method)

	_, err = mem.Metadata("public.missing")
	assert.Error(err)

	// double registration is refused
	assert.Error(mem.AddTable(&dmeta.Metadata{TableID: ordersTable}))
}

func TestMemShardIntervalsSorted(t *testing.T) {
	assert := assert.New(t)

	mem := catalog.NewMem()
	assert.NoError(mem.AddTable(&dmeta.Metadata{
		TableID: ordersTable, Method: dmeta.PartitionRange,
		PartitionColumn: "customer_id", PartitionColumnIndex: 1,
		ColType: dmeta.ColumnTypeInteger, HashFunction: "ident",
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: ordersTable, ID: 2,
		Min: int64(100), Max: int64(199), MinExists: true, MaxExists: true,
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: ordersTable, ID: 1,
		Min: int64(0), Max: int64(99), MinExists: true, MaxExists: true,
	}))

	ivs, err := mem.ShardIntervals(ordersTable)
	assert.NoError(err)
	assert.Len(ivs, 2)
	assert.Equal(uint64(1), ivs[0].ID)
	assert.Equal(uint64(2), ivs[1].ID)
}

func TestMemFindOwningShard(t *testing.T) {
	assert := assert.New(t)
	mem := ordersCatalog(t)

	for i, c := range []struct {
		value    any
		expected uint64
	}{
		{value: int64(0), expected: 101},
		{value: int64(42), expected: 101},
		{value: int64(150), expected: 102},
		{value: int64(199), expected: 102},
		{value: int64(500), expected: 0},
	} {
		iv, err := mem.FindOwningShard(ordersTable, c.value)
		assert.NoError(err, "tc %d", i)
		if c.expected == 0 {
			assert.Nil(iv, "tc %d", i)
		} else {
			assert.NotNil(iv, "tc %d", i)
			assert.Equal(c.expected, iv.ID, "tc %d", i)
		}
	}
}

func TestMemFindOwningShardReference(t *testing.T) {
	assert := assert.New(t)

	mem := catalog.NewMem()
	assert.NoError(mem.AddTable(&dmeta.Metadata{
		TableID: "public.countries", Method: dmeta.PartitionNone,
	}))
	assert.NoError(mem.AddShard(&shard.Interval{TableID: "public.countries", ID: 7}))

	iv, err := mem.FindOwningShard("public.countries", int64(1))
	assert.NoError(err)
	assert.Equal(uint64(7), iv.ID)
}

func TestMemFindOwningShardAppend(t *testing.T) {
	assert := assert.New(t)

	mem := catalog.NewMem()
	assert.NoError(mem.AddTable(&dmeta.Metadata{
		TableID: "public.events", Method: dmeta.PartitionAppend,
		PartitionColumn: "created_at", PartitionColumnIndex: 1,
		ColType: dmeta.ColumnTypeInteger,
	}))

	_, err := mem.FindOwningShard("public.events", int64(1))
	assert.Error(err)
}

func TestMemPruneShards(t *testing.T) {
	assert := assert.New(t)
	mem := ordersCatalog(t)

	for i, c := range []struct {
		predicates []qast.Node
		expected   []uint64
	}{
		// equality pins a single shard
		{predicates: []qast.Node{customerIDEquals(42)}, expected: []uint64{101}},
		{predicates: []qast.Node{customerIDEquals(150)}, expected: []uint64{102}},
		// contradictory conjuncts empty the result
		{predicates: []qast.Node{customerIDEquals(42), customerIDEquals(150)}, expected: nil},
		// value outside any interval
		{predicates: []qast.Node{customerIDEquals(1000)}, expected: nil},
		// no usable predicate keeps everything
		{predicates: nil, expected: []uint64{101, 102}},
		{
			predicates: []qast.Node{&qast.OpExpr{
				Op:    "=",
				Left:  &qast.ColumnRef{RTIndex: 1, ColumnIndex: 3, Name: "status"},
				Right: &qast.Const{Value: "open"},
			}},
			expected: []uint64{101, 102},
		},
		// NULL never matches a partition value
		{
			predicates: []qast.Node{&qast.OpExpr{
				Op:    "=",
				Left:  &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1, Name: "customer_id"},
				Right: &qast.Const{IsNull: true},
			}},
			expected: nil,
		},
		// flipped operand order is normalized
		{
			predicates: []qast.Node{&qast.OpExpr{
				Op:    "=",
				Left:  &qast.Const{Value: int64(150)},
				Right: &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1, Name: "customer_id"},
			}},
			expected: []uint64{102},
		},
	} {
		pruned, err := mem.PruneShards(ordersTable, 1, c.predicates)
		assert.NoError(err, "tc %d", i)
		var ids []uint64
		for _, iv := range pruned {
			ids = append(ids, iv.ID)
		}
		assert.Equal(c.expected, ids, "tc %d", i)
	}
}

func TestMemPruneShardsRange(t *testing.T) {
	assert := assert.New(t)

	mem := catalog.NewMem()
	assert.NoError(mem.AddTable(&dmeta.Metadata{
		TableID: "public.events", Method: dmeta.PartitionRange,
		PartitionColumn: "id", PartitionColumnIndex: 1,
		ColType: dmeta.ColumnTypeInteger, HashFunction: "ident",
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: "public.events", ID: 1,
		Min: int64(0), Max: int64(99), MinExists: true, MaxExists: true,
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: "public.events", ID: 2,
		Min: int64(100), Max: int64(199), MinExists: true, MaxExists: true,
	}))

	pred := func(op string, v int64) qast.Node {
		return &qast.OpExpr{
			Op:    op,
			Left:  &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1, Name: "id"},
			Right: &qast.Const{Value: v},
		}
	}

	for i, c := range []struct {
		predicates []qast.Node
		expected   []uint64
	}{
		{predicates: []qast.Node{pred("<", 100)}, expected: []uint64{1}},
		{predicates: []qast.Node{pred("<=", 100)}, expected: []uint64{1, 2}},
		{predicates: []qast.Node{pred(">", 99)}, expected: []uint64{2}},
		{predicates: []qast.Node{pred(">=", 99)}, expected: []uint64{1, 2}},
		{predicates: []qast.Node{pred(">", 50), pred("<", 60)}, expected: []uint64{1}},
		{predicates: []qast.Node{pred(">", 250)}, expected: nil},
	} {
		pruned, err := mem.PruneShards("public.events", 1, c.predicates)
		assert.NoError(err, "tc %d", i)
		var ids []uint64
		for _, iv := range pruned {
			ids = append(ids, iv.ID)
		}
		assert.Equal(c.expected, ids, "tc %d", i)
	}
}

func TestMemPruneShardsHashIgnoresRangeOps(t *testing.T) {
	assert := assert.New(t)

	mem := catalog.NewMem()
	assert.NoError(mem.AddTable(&dmeta.Metadata{
		TableID: "public.users", Method: dmeta.PartitionHash,
		PartitionColumn: "id", PartitionColumnIndex: 1,
		ColType: dmeta.ColumnTypeInteger, HashFunction: "murmur",
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: "public.users", ID: 1,
		Min: uint64(0), Max: uint64(1 << 31), MinExists: true, MaxExists: true,
	}))
	assert.NoError(mem.AddShard(&shard.Interval{
		TableID: "public.users", ID: 2,
		Min: uint64(1<<31) + 1, Max: uint64(1<<32) - 1, MinExists: true, MaxExists: true,
	}))

	// ordering predicates cannot prune a hashed column
	pruned, err := mem.PruneShards("public.users", 1, []qast.Node{&qast.OpExpr{
		Op:    "<",
		Left:  &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1, Name: "id"},
		Right: &qast.Const{Value: int64(10)},
	}})
	assert.NoError(err)
	assert.Len(pruned, 2)

	// equality prunes through the hash function
	pruned, err = mem.PruneShards("public.users", 1, []qast.Node{&qast.OpExpr{
		Op:    "=",
		Left:  &qast.ColumnRef{RTIndex: 1, ColumnIndex: 1, Name: "id"},
		Right: &qast.Const{Value: int64(10)},
	}})
	assert.NoError(err)
	assert.Len(pruned, 1)
}

func TestMemActivePlacements(t *testing.T) {
	assert := assert.New(t)
	mem := ordersCatalog(t)

	mem.AddPlacement(&shard.Placement{
		ShardID: 101, NodeName: "worker-a", NodePort: 5432, State: shard.PlacementActive,
	})
	mem.AddPlacement(&shard.Placement{
		ShardID: 101, NodeName: "worker-b", NodePort: 5432, State: shard.PlacementInactive,
	})

	placements, err := mem.ActivePlacements(101)
	assert.NoError(err)
	assert.Len(placements, 1)
	assert.Equal("worker-a", placements[0].NodeName)

	placements, err = mem.ActivePlacements(999)
	assert.NoError(err)
	assert.Empty(placements)
}

func TestMemActiveWorkers(t *testing.T) {
	assert := assert.New(t)
	mem := ordersCatalog(t)

	workers, err := mem.ActiveWorkers()
	assert.NoError(err)
	assert.Empty(workers)

	mem.AddWorker(&shard.Worker{Name: "worker-a", Port: 5432})
	workers, err = mem.ActiveWorkers()
	assert.NoError(err)
	assert.Len(workers, 1)
}
