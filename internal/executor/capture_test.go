package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailBufferKeepsLastLines(t *testing.T) {
	b := newTailBuffer(3)
	_, err := b.Write([]byte("one\ntwo\nthree\nfour\nfive\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four", "five"}, b.Tail())
}

func TestTailBufferPartialLine(t *testing.T) {
	b := newTailBuffer(3)
	_, err := b.Write([]byte("complete\nincompl"))
	require.NoError(t, err)
	assert.Equal(t, []string{"complete", "incompl"}, b.Tail())
}

func TestTailBufferSplitWrites(t *testing.T) {
	b := newTailBuffer(5)
	for _, chunk := range []string{"hel", "lo\nwor", "ld\n"} {
		_, err := b.Write([]byte(chunk))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"hello", "world"}, b.Tail())
}

func TestTailBufferStripsCarriageReturns(t *testing.T) {
	b := newTailBuffer(2)
	_, err := b.Write([]byte("dos line\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dos line"}, b.Tail())
}
