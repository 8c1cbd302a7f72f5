package outage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorridorKey_NilIsNone(t *testing.T) {
	assert.Equal(t, "none", corridorKey(nil))
}

func TestCorridorKey_FormatsID(t *testing.T) {
	id := int64(42)
	assert.Equal(t, "42", corridorKey(&id))
}
