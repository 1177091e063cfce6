package basket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	var c Codes

	assert.True(t, c.Add("SAVE10"))
	assert.True(t, c.Add("save10"), "codes are case-sensitive")
	assert.False(t, c.Add("SAVE10"))
	assert.Equal(t, []string{"SAVE10", "save10"}, c.List())

	assert.False(t, c.Remove("MISSING"))
	assert.True(t, c.Remove("SAVE10"))
	assert.False(t, c.Contains("SAVE10"))
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Clear())
	assert.False(t, c.Clear())
	assert.Empty(t, c.List())
}

func TestNewCodes_Dedup(t *testing.T) {
	c := NewCodes("A", "B", "A", "C")
	assert.Equal(t, []string{"A", "B", "C"}, c.List())
}

func TestCodes_ListIsACopy(t *testing.T) {
	c := NewCodes("A")
	list := c.List()
	list[0] = "B"
	assert.True(t, c.Contains("A"))
}
