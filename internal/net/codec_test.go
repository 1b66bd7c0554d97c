package net

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{1, 2, 3}))
	require.NoError(t, WriteFrame(&buf, []byte{9}))

	assert.Equal(t, []byte{5, 0, 1, 2, 3}, buf.Bytes()[:5])

	p, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p)

	p, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, p)
}

func TestWriteFrame_RejectsBadSizes(t *testing.T) {
	var buf bytes.Buffer

	assert.Error(t, WriteFrame(&buf, nil))
	assert.Error(t, WriteFrame(&buf, make([]byte, MaxPayload+1)))
	assert.Zero(t, buf.Len())
}

func TestReadFrame_Errors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{2, 0}))
	assert.ErrorIs(t, err, ErrFrameLength)

	_, err = ReadFrame(bytes.NewReader([]byte{10, 0, 1, 2}))
	assert.ErrorContains(t, err, "read frame payload")

	_, err = ReadFrame(bytes.NewReader([]byte{1}))
	assert.ErrorContains(t, err, "read frame header")
}
