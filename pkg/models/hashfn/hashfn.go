// Package hashfn applies the per-table routing hash function to partition
// column values before boundary search over hash-partitioned intervals.
package hashfn

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-faster/city"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
)

type Type int

const (
	Ident  = Type(0)
	Murmur = Type(1)
	City   = Type(2)
)

func ByName(name string) (Type, error) {
	switch name {
	case "identity", "ident", "":
		return Ident, nil
	case "murmur":
		return Murmur, nil
	case "city":
		return City, nil
	default:
		return 0, fmt.Errorf("unknown hash function type: %s", name)
	}
}

func (t Type) String() string {
	switch t {
	case Ident:
		return "identity"
	case Murmur:
		return "murmur"
	case City:
		return "city"
	}
	return ""
}

func encodeUint64(input uint64) []byte {
	const bound = 1 << 56

	sz := 8
	if input >= bound {
		sz = binary.MaxVarintLen64
	}

	buf := make([]byte, sz)
	binary.PutUvarint(buf, input)
	return buf
}

// hashBytes reduces a partition value to the byte representation fed to the
// 32-bit hash functions.
func hashBytes(input any, ctype string) ([]byte, error) {
	switch ctype {
	case dmeta.ColumnTypeInteger:
		v, ok := input.(int64)
		if !ok {
			return nil, fmt.Errorf("invalid value type %T for column type '%s'", input, ctype)
		}
		return encodeUint64(uint64(v)), nil
	case dmeta.ColumnTypeUinteger:
		v, ok := input.(uint64)
		if !ok {
			return nil, fmt.Errorf("invalid value type %T for column type '%s'", input, ctype)
		}
		return encodeUint64(v), nil
	case dmeta.ColumnTypeVarchar, dmeta.ColumnTypeVarcharHashed:
		switch v := input.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		default:
			return nil, fmt.Errorf("invalid value type %T for column type '%s'", input, ctype)
		}
	default:
		return nil, fmt.Errorf("column type '%s' is not hashable", ctype)
	}
}

// Apply maps a partition value through the routing hash function. The
// identity function validates but passes values through; murmur and city
// reduce the value to a uint64 hash.
func Apply(input any, ctype string, hf Type) (any, error) {
	switch hf {
	case Ident:
		if ctype == dmeta.ColumnTypeUUID {
			s, ok := input.(string)
			if !ok {
				return nil, fmt.Errorf("invalid value type %T for column type '%s'", input, ctype)
			}
			if err := uuid.Validate(strings.ToLower(s)); err != nil {
				return nil, err
			}
		}
		return input, nil
	case Murmur:
		buf, err := hashBytes(input, ctype)
		if err != nil {
			return nil, err
		}
		return uint64(murmur3.Sum32(buf)), nil
	case City:
		buf, err := hashBytes(input, ctype)
		if err != nil {
			return nil, err
		}
		return uint64(city.Hash32(buf)), nil
	default:
		return nil, fmt.Errorf("unknown hash function type: %d", hf)
	}
}

// HashedColumnType returns the column type of hashed bound values: the
// original type under identity, uinteger otherwise.
func HashedColumnType(ctype string, hf Type) string {
	if hf == Ident {
		return ctype
	}
	return dmeta.ColumnTypeUinteger
}
