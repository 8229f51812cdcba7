// Package protobuf recognises and decodes protocol buffer payloads without a
// schema, including gRPC length-prefixed messages.
package protobuf

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxGroupDepth bounds how deeply start-group markers may nest.
const MaxGroupDepth = 64

// Field is one record of a message. Which value is set depends on Type.
type Field struct {
	Number protowire.Number
	Type   protowire.Type

	Varint  uint64
	Fixed64 uint64
	Fixed32 uint32
	// Bytes holds a length-delimited value. It may itself be a message,
	// see Message.
	Bytes []byte
	// Group holds the records between a start-group and its end-group.
	Group FieldTree
}

// FieldTree is a message decoded without a schema, in wire order.
type FieldTree []Field

// Value returns whichever value the field carries.
func (f Field) Value() any {
	switch f.Type {
	case protowire.VarintType:
		return f.Varint
	case protowire.Fixed64Type:
		return f.Fixed64
	case protowire.Fixed32Type:
		return f.Fixed32
	case protowire.BytesType:
		return f.Bytes
	case protowire.StartGroupType:
		return f.Group
	}
	return nil
}

// Message re-parses a length-delimited value as a nested message.
func (f Field) Message() (FieldTree, error) {
	if f.Type != protowire.BytesType {
		return nil, fmt.Errorf("field %d is %s, not length-delimited: %w", f.Number, WireTypeName(f.Type), ErrUnexpectedWireType)
	}
	return ParseStructural(f.Bytes)
}

// WireTypeName returns the wire type name used by the protobuf encoding docs.
func WireTypeName(t protowire.Type) string {
	switch t {
	case protowire.VarintType:
		return "VARINT"
	case protowire.Fixed64Type:
		return "I64"
	case protowire.BytesType:
		return "LEN"
	case protowire.StartGroupType:
		return "SGROUP"
	case protowire.EndGroupType:
		return "EGROUP"
	case protowire.Fixed32Type:
		return "I32"
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// ParseStructural decodes buf as a sequence of protobuf records. The whole
// buffer must be consumed; the first malformed record fails the parse and no
// partial tree is returned.
func ParseStructural(buf []byte) (FieldTree, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyBuffer
	}
	p := &parser{buf: buf}
	return p.fields(0, 0)
}

// IsValidProtobuf reports whether ParseStructural accepts buf.
func IsValidProtobuf(buf []byte) bool {
	_, err := ParseStructural(buf)
	return err == nil
}

type parser struct {
	buf []byte
	pos int
}

func (p *parser) remaining() int {
	return len(p.buf) - p.pos
}

// fields reads records until the end of the buffer or, inside a group, until
// the end-group marker for that group. group is 0 at the top level.
func (p *parser) fields(group protowire.Number, depth int) (FieldTree, error) {
	var tree FieldTree
	for p.pos < len(p.buf) {
		start := p.pos
		tag, n := protowire.ConsumeVarint(p.buf[p.pos:])
		if n < 0 {
			return nil, decodeErr(start, ErrMalformedVarint, "tag")
		}
		p.pos += n

		num, typ := protowire.DecodeTag(tag)
		if typ > protowire.Fixed32Type {
			return nil, decodeErr(start, ErrUnexpectedWireType, "wire type %d", typ)
		}
		if !num.IsValid() {
			return nil, decodeErr(start, ErrInvalidFieldNumber, "field number %d", num)
		}

		if typ == protowire.EndGroupType {
			if group == 0 || num != group {
				return nil, decodeErr(start, ErrUnexpectedWireType, "end of group %d without matching start", num)
			}
			return tree, nil
		}
		if p.remaining() == 0 {
			return nil, decodeErr(start, ErrTrailingData, "field %d has no value", num)
		}

		f := Field{Number: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(p.buf[p.pos:])
			if n < 0 {
				return nil, decodeErr(p.pos, ErrMalformedVarint, "value of field %d", num)
			}
			f.Varint = v
			p.pos += n
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(p.buf[p.pos:])
			if n < 0 {
				return nil, decodeErr(p.pos, ErrTruncatedField, "field %d needs 8 bytes, %d remain", num, p.remaining())
			}
			f.Fixed64 = v
			p.pos += n
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(p.buf[p.pos:])
			if n < 0 {
				return nil, decodeErr(p.pos, ErrTruncatedField, "field %d needs 4 bytes, %d remain", num, p.remaining())
			}
			f.Fixed32 = v
			p.pos += n
		case protowire.BytesType:
			length, n := protowire.ConsumeVarint(p.buf[p.pos:])
			if n < 0 {
				return nil, decodeErr(p.pos, ErrMalformedVarint, "length of field %d", num)
			}
			p.pos += n
			if length > uint64(p.remaining()) {
				return nil, decodeErr(p.pos, ErrTruncatedField, "field %d claims %d bytes, %d remain", num, length, p.remaining())
			}
			end := p.pos + int(length)
			f.Bytes = bytes.Clone(p.buf[p.pos:end])
			if f.Bytes == nil {
				f.Bytes = []byte{}
			}
			p.pos = end
		case protowire.StartGroupType:
			if depth >= MaxGroupDepth {
				return nil, decodeErr(start, ErrNestingTooDeep, "group %d", num)
			}
			sub, err := p.fields(num, depth+1)
			if err != nil {
				return nil, err
			}
			f.Group = sub
		}
		tree = append(tree, f)
	}

	if group != 0 {
		return nil, decodeErr(p.pos, ErrTruncatedField, "group %d is never closed", group)
	}
	return tree, nil
}
