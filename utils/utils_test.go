package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.wireprobe.io/wireprobe/config"
)

func TestLogError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	LogError(logger, errors.New("boom"), "failed to decode", zap.String("file", "a.bin"))
	LogError(logger, fmt.Errorf("stopping: %w", context.Canceled), "cancelled")
	LogError(logger, nil, "no error")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "failed to decode", entries[0].Message)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, "a.bin", entries[0].ContextMap()["file"])
	assert.Equal(t, "no error", entries[1].Message)
}

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		encoding config.InputEncoding
		want     []byte
		wantErr  bool
	}{
		{name: "raw", in: "\x08\x01", encoding: config.InputRaw, want: []byte{0x08, 0x01}},
		{name: "hex with spaces", in: "08 96 01\n", encoding: config.InputHex, want: []byte{0x08, 0x96, 0x01}},
		{name: "bad hex", in: "0g", encoding: config.InputHex, wantErr: true},
		{name: "base64", in: "CJYB\n", encoding: config.InputBase64, want: []byte{0x08, 0x96, 0x01}},
		{name: "url safe base64", in: "_-8", encoding: config.InputBase64, want: []byte{0xff, 0xef}},
		{name: "bad base64", in: "!!!", encoding: config.InputBase64, wantErr: true},
		{name: "unknown", in: "x", encoding: "ascii85", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInput([]byte(tt.in), tt.encoding)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.hex")
	require.NoError(t, os.WriteFile(path, []byte("0801"), 0o644))

	got, err := ReadInput(path, config.InputHex, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x01}, got)

	got, err = ReadInput("-", config.InputRaw, strings.NewReader("\x0a\x00"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x00}, got)

	_, err = ReadInput(filepath.Join(t.TempDir(), "missing"), config.InputRaw, nil)
	require.Error(t, err)
	assert.False(t, CheckFileExists(filepath.Join(t.TempDir(), "missing")))
	assert.True(t, CheckFileExists(path))
}

func TestNewCtx_Cancel(t *testing.T) {
	ctx, cancel := NewCtx(zap.NewNop())
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
