// Package inspect decides how a captured HTTP body should be decoded, based on
// its headers and, when those say nothing, on the bytes themselves.
package inspect

import (
	"fmt"
	"mime"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/pkg/compress"
	"go.wireprobe.io/wireprobe/pkg/models"
	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"google.golang.org/grpc/codes"
)

type Config struct {
	GrpcContentTypes     []string
	ProtobufContentTypes []string
}

// Message is one decoded protobuf message. Raw is the encoded payload.
type Message struct {
	Raw  []byte
	Tree protobuf.FieldTree
}

// Inspection is the outcome for one body. Err is set when the body was
// expected to be protobuf but could not be decoded; Messages then holds what
// decoded before the failure.
type Inspection struct {
	Kind        models.BodyKind
	ContentType string
	Messages    []Message
	Err         error
}

type Inspector struct {
	logger *zap.Logger
	cfg    Config
}

func New(logger *zap.Logger, cfg Config) *Inspector {
	return &Inspector{logger: logger, cfg: cfg}
}

// Inspect decodes body according to headers. It never fails outright: any
// problem is reported through Inspection.Err.
func (i *Inspector) Inspect(headers map[string]string, body []byte) Inspection {
	contentType := mediaType(models.Header(headers, "content-type"))
	result := Inspection{Kind: models.BodyOther, ContentType: contentType}

	if len(body) == 0 {
		result.Kind = models.BodyEmpty
		return result
	}

	body, err := compress.Decompress(i.logger, models.Header(headers, "content-encoding"), body)
	if err != nil {
		result.Err = err
		return result
	}

	switch {
	case slices.Contains(i.cfg.GrpcContentTypes, contentType):
		result.Kind = models.BodyGrpc
		result.Messages, result.Err = GrpcMessages(body)
	case slices.Contains(i.cfg.ProtobufContentTypes, contentType):
		result.Kind = models.BodyProtobuf
		tree, err := protobuf.ParseStructural(body)
		if err != nil {
			result.Err = err
			break
		}
		result.Messages = []Message{{Raw: body, Tree: tree}}
	case contentType == "" || contentType == "application/octet-stream":
		// Unlabelled: only claim it when it both looks and parses like protobuf.
		if !protobuf.LooksLikeProtobuf(body) {
			break
		}
		tree, err := protobuf.ParseStructural(body)
		if err != nil {
			i.logger.Debug("body has a protobuf signature but does not parse", zap.Error(err))
			break
		}
		result.Kind = models.BodyProtobuf
		result.Messages = []Message{{Raw: body, Tree: tree}}
	}
	return result
}

// GrpcMessages decodes every length-prefixed message in body. A zero-length
// message is an empty protobuf message. On failure the messages decoded so far
// are returned with the error.
func GrpcMessages(body []byte) ([]Message, error) {
	var msgs []Message
	for frame, err := range protobuf.GrpcFrames(body) {
		if err != nil {
			return msgs, err
		}
		if frame.Length == 0 {
			msgs = append(msgs, Message{Raw: frame.Payload, Tree: protobuf.FieldTree{}})
			continue
		}
		tree, err := protobuf.ParseStructural(frame.Payload)
		if err != nil {
			return msgs, fmt.Errorf("message %d: %w", len(msgs), err)
		}
		msgs = append(msgs, Message{Raw: frame.Payload, Tree: tree})
	}
	return msgs, nil
}

// GrpcStatus reads the grpc-status and grpc-message trailers. ok is false
// when there is no status to read.
func GrpcStatus(trailers map[string]string) (code codes.Code, message string, ok bool) {
	raw := models.Header(trailers, "grpc-status")
	if raw == "" {
		return codes.Unknown, "", false
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return codes.Unknown, "", false
	}
	// grpc-message is percent-encoded on the wire.
	message = models.Header(trailers, "grpc-message")
	if unescaped, err := url.PathUnescape(message); err == nil {
		message = unescaped
	}
	return codes.Code(n), message, true
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}
