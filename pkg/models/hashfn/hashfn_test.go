package hashfn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdobridnuk/shardroute/pkg/models/dmeta"
	"github.com/sdobridnuk/shardroute/pkg/models/hashfn"
)

func TestByName(t *testing.T) {
	assert := assert.New(t)

	for i, c := range []struct {
		name     string
		expected hashfn.Type
		err      bool
	}{
		{name: "identity", expected: hashfn.Ident},
		{name: "ident", expected: hashfn.Ident},
		{name: "", expected: hashfn.Ident},
		{name: "murmur", expected: hashfn.Murmur},
		{name: "city", expected: hashfn.City},
		{name: "sha256", err: true},
	} {
		hf, err := hashfn.ByName(c.name)
		if c.err {
			assert.Error(err, "tc %d", i)
			continue
		}
		assert.NoError(err, "tc %d", i)
		assert.Equal(c.expected, hf, "tc %d", i)
	}
}

func TestApplyIdent(t *testing.T) {
	assert := assert.New(t)

	res, err := hashfn.Apply(int64(42), dmeta.ColumnTypeInteger, hashfn.Ident)
	assert.NoError(err)
	assert.Equal(int64(42), res)

	res, err = hashfn.Apply("customer-1", dmeta.ColumnTypeVarchar, hashfn.Ident)
	assert.NoError(err)
	assert.Equal("customer-1", res)

	// uuid values are validated even though they pass through
	res, err = hashfn.Apply("9cb46a83-1b71-4f96-936c-b53b98f234da", dmeta.ColumnTypeUUID, hashfn.Ident)
	assert.NoError(err)
	assert.Equal("9cb46a83-1b71-4f96-936c-b53b98f234da", res)

	_, err = hashfn.Apply("not-a-uuid", dmeta.ColumnTypeUUID, hashfn.Ident)
	assert.Error(err)
}

func TestApplyHashed(t *testing.T) {
	assert := assert.New(t)

	for i, c := range []struct {
		value any
		ctype string
		hf    hashfn.Type
	}{
		{value: int64(42), ctype: dmeta.ColumnTypeInteger, hf: hashfn.Murmur},
		{value: uint64(42), ctype: dmeta.ColumnTypeUinteger, hf: hashfn.Murmur},
		{value: "abc", ctype: dmeta.ColumnTypeVarcharHashed, hf: hashfn.Murmur},
		{value: int64(42), ctype: dmeta.ColumnTypeInteger, hf: hashfn.City},
		{value: "abc", ctype: dmeta.ColumnTypeVarcharHashed, hf: hashfn.City},
	} {
		res, err := hashfn.Apply(c.value, c.ctype, c.hf)
		assert.NoError(err, "tc %d", i)
		assert.IsType(uint64(0), res, "tc %d", i)

		// same input always lands on the same hash
		again, err := hashfn.Apply(c.value, c.ctype, c.hf)
		assert.NoError(err, "tc %d", i)
		assert.Equal(res, again, "tc %d", i)
	}

	_, err := hashfn.Apply("abc", dmeta.ColumnTypeInteger, hashfn.Murmur)
	assert.Error(err)
}

func TestHashedColumnType(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(dmeta.ColumnTypeInteger,
		hashfn.HashedColumnType(dmeta.ColumnTypeInteger, hashfn.Ident))
	assert.Equal(dmeta.ColumnTypeUinteger,
		hashfn.HashedColumnType(dmeta.ColumnTypeInteger, hashfn.Murmur))
	assert.Equal(dmeta.ColumnTypeUinteger,
		hashfn.HashedColumnType(dmeta.ColumnTypeVarcharHashed, hashfn.City))
}
