// Package render turns decoded field trees into human-readable output.
package render

import (
	"encoding/hex"
	"fmt"
	"math"
	"unicode"
	"unicode/utf8"

	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"google.golang.org/protobuf/encoding/protowire"
)

// Node is the display form of one field. Length-delimited values that parse
// as messages are expanded into Message; everything else lands in Value.
type Node struct {
	Field    int32  `json:"field" yaml:"field"`
	WireType string `json:"wire_type" yaml:"wire_type"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	// Alt is another plausible reading of the value, e.g. a double for I64.
	Alt     string `json:"alt,omitempty" yaml:"alt,omitempty"`
	Message []Node `json:"message,omitempty" yaml:"message,omitempty"`
}

// Nodes converts tree, expanding nested messages up to maxDepth levels.
func Nodes(tree protobuf.FieldTree, maxDepth int) []Node {
	return nodes(tree, 0, maxDepth)
}

func nodes(tree protobuf.FieldTree, depth, maxDepth int) []Node {
	out := make([]Node, 0, len(tree))
	for _, f := range tree {
		n := Node{Field: int32(f.Number), WireType: protobuf.WireTypeName(f.Type)}
		switch f.Type {
		case protowire.VarintType:
			n.Value = f.Varint
			if f.Varint > math.MaxInt64 {
				n.Alt = fmt.Sprintf("int %d", int64(f.Varint))
			}
		case protowire.Fixed64Type:
			n.Value = f.Fixed64
			n.Alt = fmt.Sprintf("double %g", math.Float64frombits(f.Fixed64))
		case protowire.Fixed32Type:
			n.Value = f.Fixed32
			n.Alt = fmt.Sprintf("float %g", math.Float32frombits(f.Fixed32))
		case protowire.StartGroupType:
			if depth < maxDepth {
				n.Message = nodes(f.Group, depth+1, maxDepth)
			} else {
				n.Value = fmt.Sprintf("<group of %d fields>", len(f.Group))
			}
		case protowire.BytesType:
			bytesNode(&n, f, depth, maxDepth)
		}
		out = append(out, n)
	}
	return out
}

func bytesNode(n *Node, f protobuf.Field, depth, maxDepth int) {
	if isPrintable(f.Bytes) {
		n.Value = string(f.Bytes)
		return
	}
	if depth < maxDepth {
		if sub, err := f.Message(); err == nil {
			n.Message = nodes(sub, depth+1, maxDepth)
			return
		}
	}
	n.Value = hex.EncodeToString(f.Bytes)
	n.Alt = fmt.Sprintf("%d bytes", len(f.Bytes))
}

// isPrintable reports whether b reads as text. Empty values count as text.
func isPrintable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
