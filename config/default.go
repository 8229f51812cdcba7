package config

import (
	"strings"

	yaml3 "gopkg.in/yaml.v3"
	"sigs.k8s.io/kustomize/kyaml/yaml"
	"sigs.k8s.io/kustomize/kyaml/yaml/merge2"
	"sigs.k8s.io/kustomize/kyaml/yaml/walk"
)

// FileName is the configuration file looked up in --configPath.
const FileName = "wireprobe.yaml"

var defaultConfig = `
debug: false
disableANSI: false
configPath: "."
logFile: ""
input: "raw"
output: "text"
decode:
  maxDepth: 8
  explicitWireTypes: false
  allFrames: true
inspect:
  grpcContentTypes:
    - "application/grpc"
    - "application/grpc+proto"
  protobufContentTypes:
    - "application/x-protobuf"
    - "application/protobuf"
    - "application/vnd.google.protobuf"
    - "application/x-google-protobuf"
detect:
  concurrency: 4
capture:
  port: 8000
`

func GetDefaultConfig() string {
	return defaultConfig
}

func New() *Config {
	config := &Config{}
	if err := yaml3.Unmarshal([]byte(defaultConfig), config); err != nil {
		panic(err)
	}
	return config
}

// Load returns the defaults overridden by the YAML document in user.
func Load(user string) (*Config, error) {
	if strings.TrimSpace(user) == "" {
		return New(), nil
	}
	merged, err := Merge(user, defaultConfig)
	if err != nil {
		return nil, err
	}
	config := &Config{}
	if err := yaml3.Unmarshal([]byte(merged), config); err != nil {
		return nil, err
	}
	return config, nil
}

// Merge copies the fields of src over dest. Comments in dest survive, and so
// do lists src does not mention.
func Merge(srcStr, destStr string) (string, error) {
	return mergeStrings(srcStr, destStr, false, yaml.MergeOptions{})
}

func mergeStrings(srcStr, destStr string, infer bool, mergeOptions yaml.MergeOptions) (string, error) {
	src, err := yaml.Parse(srcStr)
	if err != nil {
		return "", err
	}

	dest, err := yaml.Parse(destStr)
	if err != nil {
		return "", err
	}

	result, err := walk.Walker{
		Sources:               []*yaml.RNode{dest, src},
		Visitor:               merge2.Merger{},
		InferAssociativeLists: infer,
		VisitKeysAsScalars:    true,
		MergeOptions:          mergeOptions,
	}.Walk()
	if err != nil {
		return "", err
	}

	return result.String()
}
