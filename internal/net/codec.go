package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frames are [uint16 LE total length, header included][payload].
const (
	headerLen  = 2
	MaxPayload = 1<<16 - 1 - headerLen
)

// ErrFrameLength marks a header whose length cannot be a valid frame.
var ErrFrameLength = errors.New("invalid frame length")

// ReadFrame reads the next frame from r and returns its payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	n := int(binary.LittleEndian.Uint16(hdr[:])) - headerLen
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrFrameLength, n+headerLen)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", n, err)
	}
	return payload, nil
}

// AppendFrame appends data as one frame to dst.
func AppendFrame(dst, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data) > MaxPayload {
		return dst, fmt.Errorf("invalid payload size: %d", len(data))
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(headerLen+len(data)))
	return append(dst, data...), nil
}

// WriteFrame frames data and writes it with a single Write call.
func WriteFrame(w io.Writer, data []byte) error {
	frame, err := AppendFrame(make([]byte, 0, headerLen+len(data)), data)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
