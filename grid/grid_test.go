package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwestman/ddbgrid/table"
)

func TestDiffEmpty(t *testing.T) {
	assert.True(t, Diff{}.Empty())
	assert.True(t, Diff{Edited: map[int]table.Row{}, Deleted: []int{}}.Empty())

	assert.False(t, Diff{Edited: map[int]table.Row{0: {"name": "x"}}}.Empty())
	assert.False(t, Diff{Added: []NewRow{{Key: "a"}}}.Empty())
	assert.False(t, Diff{Deleted: []int{2}}.Empty())
}
