package common

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULIDIsUniqueAndOrdered(t *testing.T) {
	prev := ""
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := NewULID()
		require.NoError(t, err)
		assert.Len(t, id, 26)

		_, err = ulid.ParseStrict(id)
		require.NoError(t, err)

		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}

		assert.Greater(t, id, prev)
		prev = id
	}
}
