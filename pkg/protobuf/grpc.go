package protobuf

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// GrpcHeaderSize is the size of the length-prefixed message header:
// a compression flag byte followed by a big-endian uint32 length.
const GrpcHeaderSize = 5

// GrpcFrame is one length-prefixed message from a gRPC DATA frame body.
type GrpcFrame struct {
	Compressed bool
	Length     uint32
	Payload    []byte
}

// ReadGrpcFrame strips one length-prefixed message off buf and returns it
// with whatever follows it. Compressed messages are rejected before the
// length is looked at.
func ReadGrpcFrame(buf []byte) (GrpcFrame, []byte, error) {
	if len(buf) == 0 {
		return GrpcFrame{}, nil, fmt.Errorf("missing compression flag: %w", ErrFrameTooShort)
	}
	if buf[0] != 0 {
		return GrpcFrame{}, nil, fmt.Errorf("compression flag %#x: %w", buf[0], ErrUnsupportedCompression)
	}
	if len(buf) < GrpcHeaderSize {
		return GrpcFrame{}, nil, fmt.Errorf("got %d header bytes, need %d: %w", len(buf), GrpcHeaderSize, ErrFrameTooShort)
	}

	length := binary.BigEndian.Uint32(buf[1:GrpcHeaderSize])
	if uint64(len(buf)-GrpcHeaderSize) < uint64(length) {
		return GrpcFrame{}, nil, fmt.Errorf("message declares %d bytes, %d remain: %w", length, len(buf)-GrpcHeaderSize, ErrFrameTooShort)
	}

	end := GrpcHeaderSize + int(length)
	return GrpcFrame{
		Length:  length,
		Payload: buf[GrpcHeaderSize:end],
	}, buf[end:], nil
}

// UnwrapGrpcFrame decodes the first length-prefixed message in buf. Anything
// after that message is ignored; use UnwrapGrpcFrames to walk all of them.
func UnwrapGrpcFrame(buf []byte) (FieldTree, error) {
	frame, _, err := ReadGrpcFrame(buf)
	if err != nil {
		return nil, err
	}
	return ParseStructural(frame.Payload)
}

// GrpcFrames yields each length-prefixed message in buf, in order, until buf
// is exhausted. The sequence ends after the first error.
func GrpcFrames(buf []byte) iter.Seq2[GrpcFrame, error] {
	return func(yield func(GrpcFrame, error) bool) {
		rest := buf
		for len(rest) > 0 {
			frame, next, err := ReadGrpcFrame(rest)
			if err != nil {
				yield(GrpcFrame{}, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
			rest = next
		}
	}
}

// UnwrapGrpcFrames yields one decoded message per frame in buf. The sequence
// ends after the first framing or decode error.
func UnwrapGrpcFrames(buf []byte) iter.Seq2[FieldTree, error] {
	return func(yield func(FieldTree, error) bool) {
		for frame, err := range GrpcFrames(buf) {
			if err != nil {
				yield(nil, err)
				return
			}
			tree, err := ParseStructural(frame.Payload)
			if !yield(tree, err) || err != nil {
				return
			}
		}
	}
}

// EncodeGrpcFrame wraps payload in an uncompressed length-prefixed message.
func EncodeGrpcFrame(payload []byte) []byte {
	frame := make([]byte, GrpcHeaderSize, GrpcHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[1:GrpcHeaderSize], uint32(len(payload)))
	return append(frame, payload...)
}
