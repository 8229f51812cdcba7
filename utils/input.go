package utils

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"go.wireprobe.io/wireprobe/config"
)

// ReadInput reads path, or standard input when path is "-", and decodes it
// per encoding. Whitespace is ignored in hex and base64 input.
func ReadInput(path string, encoding config.InputEncoding, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeInput(data, encoding)
}

func DecodeInput(data []byte, encoding config.InputEncoding) ([]byte, error) {
	switch encoding {
	case config.InputRaw, "":
		return data, nil
	case config.InputHex:
		out, err := hex.DecodeString(stripSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("invalid hex input: %w", err)
		}
		return out, nil
	case config.InputBase64:
		s := stripSpace(string(data))
		out, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			// Fall back to unpadded URL-safe base64.
			if alt, altErr := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); altErr == nil {
				return alt, nil
			}
			return nil, fmt.Errorf("invalid base64 input: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown input encoding %q", encoding)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
