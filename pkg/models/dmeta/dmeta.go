// Package dmeta models the distribution metadata the catalog tracks per
// distributed table. The router planner reads it as an immutable snapshot
// and never writes it back.
package dmeta

// TableID is the qualified name of a distributed table.
type TableID string

type PartitionMethod int

const (
	// PartitionNone marks a reference table: replicated in full, exactly
	// one shard covering the whole table.
	PartitionNone PartitionMethod = iota
	PartitionHash
	PartitionRange
	PartitionAppend
)

func (m PartitionMethod) String() string {
	switch m {
	case PartitionNone:
		return "none"
	case PartitionHash:
		return "hash"
	case PartitionRange:
		return "range"
	case PartitionAppend:
		return "append"
	}
	return "invalid"
}

type ReplicationModel int

const (
	ReplicationInvalid ReplicationModel = iota
	ReplicationStatement
	ReplicationStreaming
)

/* Partition column types */
const (
	ColumnTypeVarchar       = "varchar"
	ColumnTypeVarcharHashed = "varchar_hashed"
	ColumnTypeInteger       = "integer"
	ColumnTypeUinteger      = "uinteger"
	ColumnTypeUUID          = "uuid"
)

// Metadata is the per-table distribution descriptor.
type Metadata struct {
	TableID TableID
	Method  PartitionMethod

	// PartitionColumn is empty and PartitionColumnIndex zero for
	// reference tables (Method == PartitionNone).
	PartitionColumn      string
	PartitionColumnIndex int

	ColType      string
	HashFunction string

	ReplicationModel ReplicationModel
}

func (m *Metadata) HasPartitionColumn() bool {
	return m.Method != PartitionNone && m.PartitionColumnIndex > 0
}
