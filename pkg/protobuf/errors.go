package protobuf

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBuffer            = errors.New("protobuf: empty buffer")
	ErrMalformedVarint        = errors.New("protobuf: malformed varint")
	ErrTruncatedField         = errors.New("protobuf: truncated field")
	ErrUnexpectedWireType     = errors.New("protobuf: unexpected wire type")
	ErrInvalidFieldNumber     = errors.New("protobuf: invalid field number")
	ErrTrailingData           = errors.New("protobuf: buffer ends mid-record")
	ErrNestingTooDeep         = errors.New("protobuf: group nesting too deep")
	ErrUnsupportedCompression = errors.New("grpc: compressed messages are not supported")
	ErrFrameTooShort          = errors.New("grpc: frame too short")
)

// DecodeError records where in the buffer a decode failed.
type DecodeError struct {
	Offset int
	Err    error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(offset int, err error, format string, args ...any) error {
	return &DecodeError{Offset: offset, Err: err, Detail: fmt.Sprintf(format, args...)}
}
