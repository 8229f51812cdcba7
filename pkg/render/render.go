package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/protocolbuffers/protoscope"
	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	Text       Format = "text"
	JSON       Format = "json"
	YAML       Format = "yaml"
	Table      Format = "table"
	Protoscope Format = "protoscope"
)

// ParseFormat validates a format name given on the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Text, JSON, YAML, Table, Protoscope:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q, want one of text, json, yaml, table, protoscope", s)
}

type Options struct {
	Format            Format
	MaxDepth          int
	ExplicitWireTypes bool
	NoColor           bool
}

type Renderer struct {
	opts     Options
	fieldNum func(a ...interface{}) string
	wireType func(a ...interface{}) string
}

func New(opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = Text
	}
	fieldNum := color.New(color.FgCyan, color.Bold)
	wireType := color.New(color.FgHiBlack)
	if opts.NoColor {
		fieldNum.DisableColor()
		wireType.DisableColor()
	}
	return &Renderer{
		opts:     opts,
		fieldNum: fieldNum.SprintFunc(),
		wireType: wireType.SprintFunc(),
	}
}

// Write renders one message. raw is the encoded message the tree was parsed
// from; only the protoscope format reads it.
func (r *Renderer) Write(w io.Writer, raw []byte, tree protobuf.FieldTree) error {
	switch r.opts.Format {
	case Protoscope:
		_, err := io.WriteString(w, protoscope.Write(raw, protoscope.WriterOptions{
			ExplicitWireTypes: r.opts.ExplicitWireTypes,
		}))
		return err
	case JSON, YAML:
		return r.encode(w, Nodes(tree, r.opts.MaxDepth))
	case Table:
		return r.writeTable(w, Nodes(tree, r.opts.MaxDepth))
	default:
		var sb strings.Builder
		r.writeText(&sb, Nodes(tree, r.opts.MaxDepth), 0)
		_, err := io.WriteString(w, sb.String())
		return err
	}
}

// Message is one entry of a message sequence, such as the frames of a gRPC
// body.
type Message struct {
	Raw  []byte
	Tree protobuf.FieldTree
}

type messageOut struct {
	Index  int    `json:"index" yaml:"index"`
	Length int    `json:"length" yaml:"length"`
	Fields []Node `json:"fields" yaml:"fields"`
}

// WriteMessages renders a sequence of messages. JSON and YAML produce a single
// document; the other formats print each message under a comment line.
func (r *Renderer) WriteMessages(w io.Writer, msgs []Message) error {
	if r.opts.Format == JSON || r.opts.Format == YAML {
		out := make([]messageOut, len(msgs))
		for i, m := range msgs {
			out[i] = messageOut{Index: i, Length: len(m.Raw), Fields: Nodes(m.Tree, r.opts.MaxDepth)}
		}
		return r.encode(w, out)
	}
	for i, m := range msgs {
		header := r.wireType(fmt.Sprintf("# message %d (%d bytes)", i, len(m.Raw)))
		if _, err := io.WriteString(w, header+"\n"); err != nil {
			return err
		}
		if err := r.Write(w, m.Raw, m.Tree); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) encode(w io.Writer, v any) error {
	if r.opts.Format == JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) writeText(sb *strings.Builder, nodes []Node, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, n := range nodes {
		sb.WriteString(pad)
		sb.WriteString(r.fieldNum(strconv.Itoa(int(n.Field)) + ":"))
		if n.Message != nil {
			sb.WriteString(" {")
			if r.opts.ExplicitWireTypes {
				sb.WriteString(" " + r.wireType("# "+n.WireType))
			}
			sb.WriteString("\n")
			r.writeText(sb, n.Message, indent+1)
			sb.WriteString(pad + "}\n")
			continue
		}
		sb.WriteString(" " + formatValue(n.Value))
		comment := []string{}
		if r.opts.ExplicitWireTypes {
			comment = append(comment, n.WireType)
		}
		if n.Alt != "" {
			comment = append(comment, n.Alt)
		}
		if len(comment) > 0 {
			sb.WriteString("  " + r.wireType("# "+strings.Join(comment, ", ")))
		}
		sb.WriteString("\n")
	}
}

func (r *Renderer) writeTable(w io.Writer, nodes []Node) error {
	table := tablewriter.NewWriter(w)
	table.Header("Path", "Wire type", "Value", "Alt")
	if err := appendRows(table, nodes, ""); err != nil {
		return err
	}
	return table.Render()
}

func appendRows(table *tablewriter.Table, nodes []Node, prefix string) error {
	for _, n := range nodes {
		path := prefix + strconv.Itoa(int(n.Field))
		value := formatValue(n.Value)
		if n.Message != nil {
			value = fmt.Sprintf("{%d fields}", len(n.Message))
		}
		if err := table.Append([]string{path, n.WireType, value, n.Alt}); err != nil {
			return err
		}
		if n.Message != nil {
			if err := appendRows(table, n.Message, path+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case nil:
		return `""`
	default:
		return fmt.Sprint(v)
	}
}
