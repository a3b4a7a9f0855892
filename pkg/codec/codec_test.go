package codec_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/synote/pkg/codec"
	"github.com/aretw0/synote/pkg/core"
)

func TestZstd_RoundTrip(t *testing.T) {
	c := codec.NewZstd()

	inputs := map[string]string{
		"empty":     "",
		"ascii":     "milk, eggs",
		"unicode":   "café ☕ – ノート",
		"newlines":  "line 1\nline 2\r\n\tindented",
		"megabytes": strings.Repeat("the quick brown fox jumps over the lazy dog 0123456789\n", 60_000),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			payload, err := c.Compress(in)
			require.NoError(t, err)

			out, err := c.Decompress(payload)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestZstd_CorruptPayload(t *testing.T) {
	c := codec.NewZstd()

	t.Run("Not Base64", func(t *testing.T) {
		_, err := c.Decompress("%%% not base64 %%%")
		var decodeErr *core.DecodeError
		assert.True(t, errors.As(err, &decodeErr))
	})

	t.Run("Not A Frame", func(t *testing.T) {
		_, err := c.Decompress("aGVsbG8gd29ybGQ=") // "hello world"
		var decodeErr *core.DecodeError
		assert.True(t, errors.As(err, &decodeErr))
	})
}

func TestDecode_LegacyPlainText(t *testing.T) {
	n := core.Note{ID: "n1", Content: "written before compression"}

	text, err := codec.Decode(codec.NewZstd(), n)
	require.NoError(t, err)
	assert.Equal(t, "written before compression", text)

	text, err = codec.Decode(nil, n)
	require.NoError(t, err)
	assert.Equal(t, "written before compression", text)
}

func TestEncodeDecode(t *testing.T) {
	c := codec.NewZstd()

	content, compressed, err := codec.Encode(c, "abc")
	require.NoError(t, err)
	assert.True(t, compressed)

	text, err := codec.Decode(c, core.Note{Content: content, Compressed: compressed})
	require.NoError(t, err)
	assert.Equal(t, "abc", text)

	content, compressed, err = codec.Encode(nil, "abc")
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, "abc", content)

	_, err = codec.Decode(nil, core.Note{ID: "x", Content: content, Compressed: true})
	var decodeErr *core.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}
