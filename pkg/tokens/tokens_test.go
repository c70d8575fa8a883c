package tokens

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountKnownModels(t *testing.T) {
	c, err := NewTableCounter(nil)
	require.NoError(t, err)

	// "hello" is 5 bytes; cl100k estimates ceil(5/4) = 2
	n, err := c.Count("hello", "gpt-4")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// versioned releases resolve by prefix
	n2, err := c.Count("hello", "gpt-4-0613")
	require.NoError(t, err)
	require.Equal(t, n, n2)

	// gpt-4o must resolve to o200k, not the gpt-4 prefix
	enc, err := c.EncodingForModel("gpt-4o-mini")
	require.NoError(t, err)
	require.Equal(t, "o200k_base", enc)
}

func TestCountEmptyContent(t *testing.T) {
	c, err := NewTableCounter(nil)
	require.NoError(t, err)
	n, err := c.Count("", "gpt-4")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestCountDeterministic(t *testing.T) {
	c, err := NewTableCounter(nil)
	require.NoError(t, err)
	body := strings.Repeat("the quick brown fox ", 40)
	first, err := c.Count(body, "gpt-3.5-turbo")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		n, err := c.Count(body, "gpt-3.5-turbo")
		require.NoError(t, err)
		require.Equal(t, first, n)
	}
}

func TestCountTokensNonNegativeAndWordFloor(t *testing.T) {
	c, err := NewTableCounter(nil)
	require.NoError(t, err)
	// ten one-byte words: byte estimate alone would undercount
	n, err := c.Count("a b c d e f g h i j", "gpt-4")
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 10)
}

func TestUnsupportedModel(t *testing.T) {
	c, err := NewTableCounter(nil)
	require.NoError(t, err)
	_, err = c.Count("hello", "not-a-model")
	var ume *UnsupportedModelError
	require.True(t, errors.As(err, &ume))
	require.Equal(t, "not-a-model", ume.Model)
}

func TestExtraModelEntries(t *testing.T) {
	c, err := NewTableCounter(map[string]string{
		"acme-chat":    "cl100k_base",
		"acme-large-*": "o200k_base",
	})
	require.NoError(t, err)

	_, err = c.Count("hi", "acme-chat")
	require.NoError(t, err)

	enc, err := c.EncodingForModel("acme-large-2026-01")
	require.NoError(t, err)
	require.Equal(t, "o200k_base", enc)

	// unknown encodings are rejected at construction
	_, err = NewTableCounter(map[string]string{"x": "nope_base"})
	require.Error(t, err)
}
