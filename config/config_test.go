package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml3 "gopkg.in/yaml.v3"
)

func TestNew_Defaults(t *testing.T) {
	conf := New()
	assert.Equal(t, ".", conf.ConfigPath)
	assert.Equal(t, "raw", conf.Input)
	assert.Equal(t, "text", conf.Output)
	assert.Equal(t, 8, conf.Decode.MaxDepth)
	assert.True(t, conf.Decode.AllFrames)
	assert.Equal(t, []string{"application/grpc", "application/grpc+proto"}, conf.Inspect.GrpcContentTypes)
	assert.Len(t, conf.Inspect.ProtobufContentTypes, 4)
	assert.Equal(t, 4, conf.Detect.Concurrency)
	assert.Equal(t, 8000, conf.Capture.Port)
}

func TestNew_ReturnsIndependentCopies(t *testing.T) {
	a := New()
	a.Decode.MaxDepth = 1
	assert.Equal(t, 8, New().Decode.MaxDepth)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	conf, err := Load(`
output: json
decode:
  maxDepth: 2
inspect:
  grpcContentTypes: ["application/grpc-web"]
`)
	require.NoError(t, err)
	assert.Equal(t, "json", conf.Output)
	assert.Equal(t, 2, conf.Decode.MaxDepth)
	assert.True(t, conf.Decode.AllFrames)
	assert.Equal(t, []string{"application/grpc-web"}, conf.Inspect.GrpcContentTypes)
	assert.Len(t, conf.Inspect.ProtobufContentTypes, 4)
}

func TestLoad_Empty(t *testing.T) {
	conf, err := Load("  \n")
	require.NoError(t, err)
	assert.Equal(t, New(), conf)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load("decode: [unclosed")
	require.Error(t, err)
}

func TestMerge_KeepsDestKeys(t *testing.T) {
	merged, err := Merge("debug: true\n", GetDefaultConfig())
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, yaml3.Unmarshal([]byte(merged), &out))
	assert.Equal(t, true, out["debug"])
	assert.Equal(t, "text", out["output"])
	assert.True(t, strings.Contains(merged, "maxDepth"))
}

func TestInputEncoding_Set(t *testing.T) {
	var enc InputEncoding
	require.NoError(t, enc.Set("HEX"))
	assert.Equal(t, InputHex, enc)
	assert.Equal(t, "hex", enc.String())
	assert.Equal(t, "encoding", enc.Type())

	err := enc.Set("ascii85")
	require.Error(t, err)
	assert.Equal(t, `must be one of "raw", "hex" or "base64"`, err.Error())
	assert.Equal(t, InputHex, enc)
}
