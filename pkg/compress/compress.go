// Package compress undoes and applies HTTP content-encodings on captured
// bodies.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Decompress reverses the content-encoding header value on data. Encodings
// are listed in the order they were applied, so they are undone right to
// left. Unknown encodings leave the data untouched.
func Decompress(logger *zap.Logger, encoding string, data []byte) ([]byte, error) {
	codings := splitCodings(encoding)
	for i := len(codings) - 1; i >= 0; i-- {
		out, err := decode(logger, codings[i], data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %q content: %w", codings[i], err)
		}
		data = out
	}
	return data, nil
}

// Compress applies the codings in encoding to data, left to right.
func Compress(logger *zap.Logger, encoding string, data []byte) ([]byte, error) {
	for _, coding := range splitCodings(encoding) {
		out, err := encode(logger, coding, data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q content: %w", coding, err)
		}
		data = out
	}
	return data, nil
}

func splitCodings(encoding string) []string {
	var codings []string
	for _, c := range strings.Split(encoding, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && c != "identity" {
			codings = append(codings, c)
		}
	}
	return codings
}

func decode(logger *zap.Logger, coding string, data []byte) ([]byte, error) {
	switch coding {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	case "zstd":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		logger.Debug("unsupported content-encoding, leaving body as is", zap.String("encoding", coding))
		return data, nil
	}
}

func encode(logger *zap.Logger, coding string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch coding {
	case "gzip", "x-gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		logger.Debug("unsupported content-encoding, leaving body as is", zap.String("encoding", coding))
		return data, nil
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
