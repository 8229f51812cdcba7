// Package yaml stores captured exchanges as multi-document YAML files.
package yaml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	yamlLib "gopkg.in/yaml.v3"
)

type Kind string

const (
	HTTP Kind = "Http"
	GRPC Kind = "Grpc"
)

const Version = "wireprobe.io/v1"

// NetworkTrafficDoc is one exchange on disk. Spec holds the kind-specific
// body.
type NetworkTrafficDoc struct {
	Version string       `json:"version" yaml:"version"`
	Kind    Kind         `json:"kind" yaml:"kind"`
	Name    string       `json:"name" yaml:"name"`
	Spec    yamlLib.Node `json:"spec" yaml:"spec"`
}

// NewDoc encodes spec into a document.
func NewDoc(kind Kind, name string, spec any) (*NetworkTrafficDoc, error) {
	doc := &NetworkTrafficDoc{Version: Version, Kind: kind, Name: name}
	if err := doc.Spec.Encode(spec); err != nil {
		return nil, fmt.Errorf("failed to encode %s spec: %w", kind, err)
	}
	return doc, nil
}

// WriteDocs appends docs to path/fileName.yaml, creating it when needed.
func WriteDocs(ctx context.Context, logger *zap.Logger, path, fileName string, docs ...*NetworkTrafficDoc) error {
	isFileEmpty, err := CreateYamlFile(logger, path, fileName)
	if err != nil {
		return err
	}

	var data []byte
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := yamlLib.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %q: %w", doc.Name, err)
		}
		if !isFileEmpty || len(data) > 0 {
			data = append(data, "---\n"...)
		}
		data = append(data, d...)
	}

	yamlPath := filepath.Join(path, fileName+".yaml")
	file, err := os.OpenFile(yamlPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		logger.Error("failed to open the yaml file", zap.Error(err), zap.String("yaml file name", fileName))
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		logger.Error("failed to write the yaml documents", zap.Error(err), zap.String("yaml file name", fileName))
		return err
	}
	return file.Close()
}

// ReadDocs decodes every document in path/fileName.yaml.
func ReadDocs(path, fileName string) ([]*NetworkTrafficDoc, error) {
	file, err := os.Open(filepath.Join(path, fileName+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read the file: %w", err)
	}
	defer file.Close()

	var docs []*NetworkTrafficDoc
	decoder := yamlLib.NewDecoder(file)
	for {
		var doc NetworkTrafficDoc
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode the yaml document: %w", err)
		}
		docs = append(docs, &doc)
	}
}

// CreateYamlFile makes sure path/fileName.yaml exists and reports whether it
// is empty.
func CreateYamlFile(logger *zap.Logger, path string, fileName string) (bool, error) {
	yamlPath, err := ValidatePath(filepath.Join(path, fileName+".yaml"))
	if err != nil {
		return false, err
	}
	info, err := os.Stat(yamlPath)
	if err == nil {
		return info.Size() == 0, nil
	}
	if err := os.MkdirAll(path, fs.ModePerm); err != nil {
		logger.Error("failed to create a directory for the yaml file", zap.Error(err), zap.String("path directory", path), zap.String("yaml", fileName))
		return false, err
	}
	file, err := os.OpenFile(yamlPath, os.O_CREATE, 0o644)
	if err != nil {
		logger.Error("failed to create a yaml file", zap.Error(err), zap.String("path directory", path), zap.String("yaml", fileName))
		return false, err
	}
	return true, file.Close()
}

func ValidatePath(path string) (string, error) {
	if strings.Contains(path, "..") {
		return "", errors.New("invalid path: contains '..' indicating directory traversal")
	}
	return path, nil
}
