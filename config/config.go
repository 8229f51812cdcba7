// Package config provides the configuration of the wireprobe CLI.
package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Debug       bool    `json:"debug" yaml:"debug" mapstructure:"debug"`
	DisableANSI bool    `json:"disableANSI" yaml:"disableANSI" mapstructure:"disableANSI"`
	ConfigPath  string  `json:"configPath" yaml:"configPath" mapstructure:"configPath"`
	LogFile     string  `json:"logFile" yaml:"logFile" mapstructure:"logFile"`
	Input       string  `json:"input" yaml:"input" mapstructure:"input"`
	Output      string  `json:"output" yaml:"output" mapstructure:"output"`
	Decode      Decode  `json:"decode" yaml:"decode" mapstructure:"decode"`
	Inspect     Inspect `json:"inspect" yaml:"inspect" mapstructure:"inspect"`
	Detect      Detect  `json:"detect" yaml:"detect" mapstructure:"detect"`
	Capture     Capture `json:"capture" yaml:"capture" mapstructure:"capture"`
}

type Decode struct {
	MaxDepth          int  `json:"maxDepth" yaml:"maxDepth" mapstructure:"maxDepth"`
	ExplicitWireTypes bool `json:"explicitWireTypes" yaml:"explicitWireTypes" mapstructure:"explicitWireTypes"`
	// AllFrames decodes every frame of a gRPC body instead of only the first.
	AllFrames bool `json:"allFrames" yaml:"allFrames" mapstructure:"allFrames"`
}

type Inspect struct {
	GrpcContentTypes     []string `json:"grpcContentTypes" yaml:"grpcContentTypes" mapstructure:"grpcContentTypes"`
	ProtobufContentTypes []string `json:"protobufContentTypes" yaml:"protobufContentTypes" mapstructure:"protobufContentTypes"`
}

type Detect struct {
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

type Capture struct {
	// Port is the proxy port reported to the exchange store.
	Port int `json:"port" yaml:"port" mapstructure:"port"`
}

// InputEncoding is how input files are encoded on disk. It implements
// pflag.Value.
type InputEncoding string

const (
	InputRaw    InputEncoding = "raw"
	InputHex    InputEncoding = "hex"
	InputBase64 InputEncoding = "base64"
)

func (e *InputEncoding) String() string {
	return string(*e)
}

func (e *InputEncoding) Set(v string) error {
	switch InputEncoding(strings.ToLower(v)) {
	case InputRaw, InputHex, InputBase64:
		*e = InputEncoding(strings.ToLower(v))
		return nil
	default:
		return fmt.Errorf("must be one of %q, %q or %q", InputRaw, InputHex, InputBase64)
	}
}

func (e *InputEncoding) Type() string {
	return "encoding"
}
