package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/compress"
	"go.wireprobe.io/wireprobe/pkg/platform/yaml"
	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := Root(context.Background(), zap.NewNop())
	require.NotNil(t, root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRoot_RegistersCommands(t *testing.T) {
	root := Root(context.Background(), zap.NewNop())
	require.NotNil(t, root)
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"config", "decode", "detect", "encode", "grpc", "inspect", "replay"}, names)
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	msg := []byte{0x0a, 0x02, 'h', 'i'}
	files := []string{
		writeFile(t, dir, "msg.bin", msg),
		writeFile(t, dir, "frame.bin", protobuf.EncodeGrpcFrame(msg)),
		writeFile(t, dir, "body.json", []byte(`{"a":1}`)),
		writeFile(t, dir, "varint.bin", []byte{0x08, 0x01}),
	}

	out, err := run(t, "", append([]string{"detect", "-o", "json", "--concurrency", "2"}, files...)...)
	require.NoError(t, err)

	var got []detection
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 4)

	assert.Equal(t, detection{File: files[0], Size: 4, Signature: true, Valid: true}, got[0])
	assert.Equal(t, detection{File: files[1], Size: 9, Signature: false, Valid: false, GrpcFrame: true}, got[1])
	assert.False(t, got[2].Signature)
	assert.False(t, got[2].Valid)
	assert.False(t, got[3].Signature)
	assert.True(t, got[3].Valid)
}

func TestDetect_MissingFile(t *testing.T) {
	_, err := run(t, "", "detect", filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}

func TestDetect_Table(t *testing.T) {
	path := writeFile(t, t.TempDir(), "msg.bin", []byte{0x0a, 0x00})
	out, err := run(t, "", "detect", "-o", "table", path)
	require.NoError(t, err)
	assert.Contains(t, out, "msg.bin")
	assert.Contains(t, out, "yes")
}

func TestDecode_HexInput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "msg.hex", []byte("08 96 01 12 02 68 69\n"))
	out, err := run(t, "", "decode", path, "--input", "hex", "-o", "json")
	require.NoError(t, err)

	var nodes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	require.Len(t, nodes, 2)
	assert.Equal(t, float64(150), nodes[0]["value"])
	assert.Equal(t, "hi", nodes[1]["value"])
}

func TestDecode_Stdin(t *testing.T) {
	out, err := run(t, "CJYB", "decode", "-", "-i", "base64", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "value: 150")
}

func TestDecode_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.bin", []byte{0x0a, 0x05, 0x01})
	_, err := run(t, "", "decode", path)
	require.ErrorIs(t, err, protobuf.ErrTruncatedField)
}

func TestDecode_MaxDepthAlias(t *testing.T) {
	// 1: {1: 7}
	path := writeFile(t, t.TempDir(), "nested.bin", []byte{0x0a, 0x02, 0x08, 0x07})

	out, err := run(t, "", "decode", path, "-o", "json", "--max-depth", "0")
	require.NoError(t, err)
	var nodes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	require.Len(t, nodes, 1)
	assert.Nil(t, nodes[0]["message"])
	assert.Equal(t, "0807", nodes[0]["value"])
}

func TestDecode_InvalidFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "msg.bin", []byte{0x08, 0x01})

	_, err := run(t, "", "decode", path, "-o", "xml")
	require.Error(t, err)

	_, err = run(t, "", "decode", path, "-i", "ascii85")
	require.Error(t, err)

	_, err = run(t, "", "decode", path, "--maxDepth", "-1")
	require.Error(t, err)
}

func TestDecode_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.FileName, []byte("output: json\ninput: hex\n"))
	path := writeFile(t, dir, "msg.hex", []byte("0801"))

	out, err := run(t, "", "decode", path, "--configPath", dir)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), out)

	// Flags win over the file.
	out, err = run(t, "", "decode", path, "--configPath", dir, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "field: 1")
}

func TestGrpc_Frames(t *testing.T) {
	body := append(protobuf.EncodeGrpcFrame([]byte{0x08, 0x01}), protobuf.EncodeGrpcFrame(nil)...)
	path := writeFile(t, t.TempDir(), "body.bin", body)

	type message struct {
		Index  int              `json:"index"`
		Length int              `json:"length"`
		Fields []map[string]any `json:"fields"`
	}

	out, err := run(t, "", "grpc", path, "-o", "json")
	require.NoError(t, err)
	var all []message
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 2)
	assert.Len(t, all[0].Fields, 1)
	assert.Equal(t, 0, all[1].Length)

	out, err = run(t, "", "grpc", path, "-o", "json", "--allFrames=false")
	require.NoError(t, err)
	var first []message
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Len(t, first, 1)
}

func TestGrpc_Compressed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "body.bin", []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x08, 0x01})
	_, err := run(t, "", "grpc", path)
	require.ErrorIs(t, err, protobuf.ErrUnsupportedCompression)
}

func TestEncode(t *testing.T) {
	out, err := run(t, "1: 150", "encode", "-", "--emit", "hex")
	require.NoError(t, err)
	assert.Equal(t, "089601\n", out)

	out, err = run(t, `1: 150 2: {"hi"}`, "encode", "-", "--grpc")
	require.NoError(t, err)
	want := protobuf.EncodeGrpcFrame([]byte{0x08, 0x96, 0x01, 0x12, 0x02, 'h', 'i'})
	assert.Equal(t, string(want), out)

	out, err = run(t, "1: 150", "encode", "-", "--emit", "base64")
	require.NoError(t, err)
	assert.Equal(t, "CJYB\n", out)

	_, err = run(t, "1: {", "encode", "-")
	require.Error(t, err)
}

func TestInspect_CompressedProtobuf(t *testing.T) {
	body, err := compress.Compress(zap.NewNop(), "gzip", []byte{0x0a, 0x02, 'h', 'i'})
	require.NoError(t, err)
	path := writeFile(t, t.TempDir(), "body.bin", body)

	out, err := run(t, "", "inspect", path,
		"-H", "Content-Type: application/x-protobuf",
		"-H", "content-encoding: gzip",
		"-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"hi"`)
}

func TestInspect_NotProtobuf(t *testing.T) {
	path := writeFile(t, t.TempDir(), "body.json", []byte(`{"a":1}`))
	out, err := run(t, "", "inspect", path, "-H", "content-type: application/json")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"Content-Type: application/grpc", "x-empty:"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"content-type": "application/grpc", "x-empty": ""}, headers)

	_, err = parseHeaders([]string{"no colon"})
	require.Error(t, err)
	_, err = parseHeaders([]string{": value"})
	require.Error(t, err)
}

func writeHeaders(t *testing.T, fr *http2.Framer, enc *hpack.Encoder, block *bytes.Buffer, id uint32, endStream bool, fields ...string) {
	t.Helper()
	block.Reset()
	for i := 0; i+1 < len(fields); i += 2 {
		require.NoError(t, enc.WriteField(hpack.HeaderField{Name: fields[i], Value: fields[i+1]}))
	}
	require.NoError(t, fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      id,
		BlockFragment: bytes.Clone(block.Bytes()),
		EndStream:     endStream,
		EndHeaders:    true,
	}))
}

func TestReplay(t *testing.T) {
	var client, server, clientBlock, serverBlock bytes.Buffer
	client.WriteString(http2.ClientPreface)
	cf := http2.NewFramer(&client, nil)
	sf := http2.NewFramer(&server, nil)
	cenc := hpack.NewEncoder(&clientBlock)
	senc := hpack.NewEncoder(&serverBlock)

	writeHeaders(t, cf, cenc, &clientBlock, 1, false,
		":method", "POST", ":scheme", "http", ":authority", "localhost:50051", ":path", "/pkg.Users/Get",
		"content-type", "application/grpc")
	require.NoError(t, cf.WriteData(1, true, protobuf.EncodeGrpcFrame([]byte{0x08, 0x01})))

	writeHeaders(t, sf, senc, &serverBlock, 1, false, ":status", "200", "content-type", "application/grpc")
	require.NoError(t, sf.WriteData(1, false, protobuf.EncodeGrpcFrame([]byte{0x08, 0x02})))
	writeHeaders(t, sf, senc, &serverBlock, 1, true, "grpc-status", "3", "grpc-message", "bad%20id")

	dir := t.TempDir()
	clientPath := writeFile(t, dir, "client.hex", []byte(hex.EncodeToString(client.Bytes())))
	serverPath := writeFile(t, dir, "server.hex", []byte(hex.EncodeToString(server.Bytes())))

	out, err := run(t, "", "replay", "--client", clientPath, "--server", serverPath, "-i", "hex", "-o", "json")
	require.NoError(t, err)

	var reports []exchangeReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, "POST", r.Method)
	assert.Equal(t, "http://localhost:50051/pkg.Users/Get", r.URL)
	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, "InvalidArgument", r.GrpcStatus)
	assert.Equal(t, "bad id", r.GrpcMessage)
	assert.Equal(t, "grpc", string(r.Request.Kind))
	assert.Len(t, r.Request.Messages, 1)
	require.NotNil(t, r.Response)
	assert.Len(t, r.Response.Messages, 1)

	out, err = run(t, "", "replay", "--client", clientPath, "--server", serverPath, "-i", "hex", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "/pkg.Users/Get")
	assert.Contains(t, out, "InvalidArgument")

	saveDir := filepath.Join(dir, "saved")
	_, err = run(t, "", "replay", "--client", clientPath, "--server", serverPath, "-i", "hex", "--save", saveDir)
	require.NoError(t, err)
	docs, err := yaml.ReadDocs(saveDir, "exchanges")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, yaml.GRPC, docs[0].Kind)
	var saved exchangeReport
	require.NoError(t, docs[0].Spec.Decode(&saved))
	assert.Equal(t, "InvalidArgument", saved.GrpcStatus)
	assert.Equal(t, docs[0].Name, saved.ID)
}

func TestReplay_RequiresClient(t *testing.T) {
	_, err := run(t, "", "replay")
	require.Error(t, err)
}

func TestConfig_Generate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, config.FileName, []byte("output: json\n"))

	_, err := run(t, "", "config", "--generate", "--configPath", dir)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	conf, err := config.Load(string(content))
	require.NoError(t, err)
	assert.Equal(t, "json", conf.Output)
	assert.Contains(t, string(content), "maxDepth")
}

func TestConfig_Print(t *testing.T) {
	_, err := run(t, "", "config", "--concurrency", "3")
	require.Error(t, err, "concurrency is not a config command flag")

	out, err := run(t, "", "config", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "output: yaml")
	assert.Contains(t, out, "maxDepth: 8")
}

func TestAliasNormalizeFunc(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"max-depth", "maxDepth"},
		{"maxDepth", "maxDepth"},
		{"grpc-content-types", "grpcContentTypes"},
		{"disable-ansi", "disableANSI"},
		{"debug", "debug"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, string(aliasNormalizeFunc(nil, tc.input)))
	}
}
