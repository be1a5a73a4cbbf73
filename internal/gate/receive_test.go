package gate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideAllAllowed(t *testing.T) {
	g := New(testHistory(), alicePolicy())
	input := c2 + " " + c3 + " refs/heads/release/2.0\n\n" + c1 + " " + c3 + " refs/heads/release/3.0\n"

	results, ok := g.DecideAll(context.Background(), strings.NewReader(input))

	require.Len(t, results, 2)
	assert.True(t, ok)
}

func TestDecideAllOneDeniedDeniesPush(t *testing.T) {
	g := New(testHistory(), alicePolicy())
	input := c2 + " " + c3 + " refs/heads/release/2.0\n" + c2 + " " + c3 + " refs/heads/main\n"

	results, ok := g.DecideAll(context.Background(), strings.NewReader(input))

	require.Len(t, results, 2)
	assert.True(t, results[0].Allowed())
	assert.False(t, results[1].Allowed())
	assert.False(t, ok)
}

func TestDecideAllMalformedLine(t *testing.T) {
	g := New(testHistory(), alicePolicy())

	results, ok := g.DecideAll(context.Background(), strings.NewReader("garbage\n"))

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrMalformedLine)
	assert.False(t, ok)
}

func TestDecideAllEmptyInput(t *testing.T) {
	g := New(testHistory(), alicePolicy())

	results, ok := g.DecideAll(context.Background(), strings.NewReader("\n"))

	assert.Empty(t, results)
	assert.False(t, ok)
}
