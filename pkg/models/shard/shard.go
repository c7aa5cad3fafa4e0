// Package shard models shard intervals and their physical placements.
package shard

import (
	"fmt"
	"sort"

	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
)

// InvalidShardID is the zero value: no shard resolved.
const InvalidShardID = uint64(0)

// Interval is one horizontal partition of a table. For hash and range
// partitioned tables both bounds exist and intervals are sorted and
// non-overlapping; append-distributed tables may leave either bound unset.
type Interval struct {
	TableID dmeta.TableID
	ID      uint64

	Min       any
	Max       any
	MinExists bool
	MaxExists bool
}

type PlacementState int

const (
	PlacementActive PlacementState = iota
	PlacementInactive
)

// Placement is one physical replica of one shard. Only active placements
// are eligible for selection.
type Placement struct {
	ShardID  uint64
	NodeName string
	NodePort int
	GroupID  int
	State    PlacementState
}

// Worker is one physical node of the cluster.
type Worker struct {
	Name    string
	Port    int
	GroupID int
}

// Cmp compares two partition values of the given column type. It returns a
// negative, zero or positive result like bytes.Compare.
func Cmp(a any, b any, ctype string) (int, error) {
	switch ctype {
	case dmeta.ColumnTypeInteger:
		av, aok := asInt64(a)
		bv, bok := asInt64(b)
		if !aok || !bok {
			return 0, fmt.Errorf("invalid value pair %T, %T for column type '%s'", a, b, ctype)
		}
		return cmpOrdered(av, bv), nil
	case dmeta.ColumnTypeUinteger:
		av, aok := asUint64(a)
		bv, bok := asUint64(b)
		if !aok || !bok {
			return 0, fmt.Errorf("invalid value pair %T, %T for column type '%s'", a, b, ctype)
		}
		return cmpOrdered(av, bv), nil
	case dmeta.ColumnTypeVarchar, dmeta.ColumnTypeVarcharHashed, dmeta.ColumnTypeUUID:
		av, aok := a.(string)
		bv, bok := b.(string)
		if !aok || !bok {
			return 0, fmt.Errorf("invalid value pair %T, %T for column type '%s'", a, b, ctype)
		}
		return cmpOrdered(av, bv), nil
	default:
		return 0, fmt.Errorf("unknown column type '%s'", ctype)
	}
}

// EqualValues reports whether two literal values are equal, normalizing
// integer widths first. The second result is false when the pair cannot be
// decided without column type information; callers must not read such a
// pair as unequal.
func EqualValues(a any, b any) (equal bool, decided bool) {
	if av, ok := asInt64(a); ok {
		if bv, ok := asInt64(b); ok {
			return av == bv, true
		}
		if bv, ok := asUint64(b); ok {
			return av >= 0 && uint64(av) == bv, true
		}
		return false, false
	}
	if av, ok := asUint64(a); ok {
		if bv, ok := asUint64(b); ok {
			return av == bv, true
		}
		return false, false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv, ok
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv, ok
	}
	return false, false
}

func cmpOrdered[T int64 | uint64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint32:
		return uint64(x), true
	case uint:
		return uint64(x), true
	case int64:
		if x >= 0 {
			return uint64(x), true
		}
	case int:
		if x >= 0 {
			return uint64(x), true
		}
	}
	return 0, false
}

// Contains reports whether value falls inside the interval, bounds
// inclusive. A missing bound is unbounded on that side.
func (iv *Interval) Contains(value any, ctype string) (bool, error) {
	if iv.MinExists {
		c, err := Cmp(value, iv.Min, ctype)
		if err != nil {
			return false, err
		}
		if c < 0 {
			return false, nil
		}
	}
	if iv.MaxExists {
		c, err := Cmp(value, iv.Max, ctype)
		if err != nil {
			return false, err
		}
		if c > 0 {
			return false, nil
		}
	}
	return true, nil
}

// SearchInterval boundary-searches the sorted interval array for the unique
// interval with min <= value <= max. It returns nil when no interval
// contains the value.
func SearchInterval(intervals []*Interval, value any, ctype string) (*Interval, error) {
	var searchErr error
	idx := sort.Search(len(intervals), func(i int) bool {
		if !intervals[i].MaxExists {
			return true
		}
		c, err := Cmp(value, intervals[i].Max, ctype)
		if err != nil {
			searchErr = err
			return true
		}
		return c <= 0
	})
	if searchErr != nil {
		return nil, searchErr
	}
	if idx >= len(intervals) {
		return nil, nil
	}
	contained, err := intervals[idx].Contains(value, ctype)
	if err != nil {
		return nil, err
	}
	if !contained {
		return nil, nil
	}
	return intervals[idx], nil
}

// SortIntervals orders intervals by lower bound, unbounded minimum first.
func SortIntervals(intervals []*Interval, ctype string) {
	sort.SliceStable(intervals, func(i, j int) bool {
		a, b := intervals[i], intervals[j]
		if !a.MinExists {
			return b.MinExists
		}
		if !b.MinExists {
			return false
		}
		c, err := Cmp(a.Min, b.Min, ctype)
		if err != nil {
			return false
		}
		return c < 0
	})
}
