package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUnique(t *testing.T) {
	seen := make(map[ID]struct{})
	for i := 0; i < 10000; i++ {
		id := New()
		assert.False(t, id.IsZero(), "freshly generated id should never be zero")
		_, dup := seen[id]
		assert.False(t, dup, "generated a duplicate node id")
		seen[id] = struct{}{}
	}
}

func TestZeroValueIsZero(t *testing.T) {
	var id ID
	assert.True(t, id.IsZero())
}

func TestStringHasCanonicalUUIDLength(t *testing.T) {
	id := New()
	s := id.String()
	assert.Len(t, s, 36) // canonical UUID form: 8-4-4-4-12 hex digits + dashes
}

func TestEqualityIsValueEquality(t *testing.T) {
	a := New()
	b := a
	assert.Equal(t, a, b)
	assert.True(t, a == b)

	c := New()
	assert.NotEqual(t, a, c)
}
