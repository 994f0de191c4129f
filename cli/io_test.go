package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoords(t *testing.T) {
	coords, err := parseCoords("10, 20", "x", "y")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, coords)

	coords, err = parseCoords("1,2,3,4", "x1", "y1", "x2", "y2")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, coords)

	_, err = parseCoords("10", "x", "y")
	assert.ErrorContains(t, err, "Expected 'x,y'")

	_, err = parseCoords("10,abc", "x", "y")
	assert.ErrorContains(t, err, "y='abc'")
}

func TestInputName(t *testing.T) {
	assert.Equal(t, "stdin", inputName(""))
	assert.Equal(t, "stdin", inputName("-"))
	assert.Equal(t, "events.jsonl", inputName("events.jsonl"))
}
