// Package h2c turns recorded cleartext HTTP/2 traffic back into request and
// response pairs.
package h2c

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/pkg/models"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

const (
	// MaxFrameSize is the largest frame payload HTTP/2 allows (2^24-1).
	MaxFrameSize = 16777215
	// headerTableSize is the initial HPACK dynamic table size.
	headerTableSize = 4096
)

// half is one direction of a stream: the request or the response.
type half struct {
	fragments [][]byte
	blocks    int
	headers   []hpack.HeaderField
	trailers  []hpack.HeaderField
	data      [][]byte
	ended     bool
}

type stream struct {
	id     uint32
	client half
	server half
}

// ParseConversation reads the client-to-server and server-to-client byte
// streams of a single h2c connection and pairs requests with responses by
// stream ID. The client stream may start with the connection preface.
// Exchanges come back in the order their request headers were sent.
// Responses on streams the client never opened are dropped.
func ParseConversation(logger *zap.Logger, client, server []byte) ([]models.HttpExchange, error) {
	streams := map[uint32]*stream{}
	var order []uint32

	client = bytes.TrimPrefix(client, []byte(http2.ClientPreface))
	err := readFrames(client, func(id uint32) *half {
		s, ok := streams[id]
		if !ok {
			s = &stream{id: id}
			streams[id] = s
			order = append(order, id)
		}
		return &s.client
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read client frames: %w", err)
	}

	orphans := map[uint32]*half{}
	err = readFrames(server, func(id uint32) *half {
		if s, ok := streams[id]; ok {
			return &s.server
		}
		h, ok := orphans[id]
		if !ok {
			logger.Debug("response on a stream the client never opened", zap.Uint32("stream", id))
			h = &half{}
			orphans[id] = h
		}
		return h
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read server frames: %w", err)
	}

	now := time.Now()
	exchanges := make([]models.HttpExchange, 0, len(order))
	for _, id := range order {
		s := streams[id]
		if s.client.blocks == 0 {
			logger.Debug("skipping stream without request headers", zap.Uint32("stream", id))
			continue
		}
		exchange := models.HttpExchange{Request: buildRequest(uuid.NewString(), s, now)}
		if s.server.blocks > 0 {
			resp := buildResponse(exchange.Request.ID, s, now)
			exchange.Response = &resp
		}
		exchanges = append(exchanges, exchange)
	}
	return exchanges, nil
}

// readFrames feeds every frame in data to the half returned by lookup for its
// stream. Connection-level frames are skipped.
func readFrames(data []byte, lookup func(id uint32) *half) error {
	framer := http2.NewFramer(nil, bytes.NewReader(data))
	framer.SetMaxReadFrameSize(MaxFrameSize)
	decoder := hpack.NewDecoder(headerTableSize, nil)

	for {
		frame, err := framer.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		id := frame.Header().StreamID
		if id == 0 {
			continue
		}
		h := lookup(id)

		switch f := frame.(type) {
		case *http2.HeadersFrame:
			if err := h.addFragment(decoder, f.HeaderBlockFragment(), f.HeadersEnded()); err != nil {
				return fmt.Errorf("stream %d: %w", id, err)
			}
			if f.StreamEnded() {
				h.ended = true
			}
		case *http2.ContinuationFrame:
			if err := h.addFragment(decoder, f.HeaderBlockFragment(), f.HeadersEnded()); err != nil {
				return fmt.Errorf("stream %d: %w", id, err)
			}
		case *http2.DataFrame:
			// The framer reuses its buffer.
			h.data = append(h.data, bytes.Clone(f.Data()))
			if f.StreamEnded() {
				h.ended = true
			}
		}
	}
}

// addFragment collects a header block fragment and decodes the block once it
// is complete. The first block holds the headers, any later ones trailers.
func (h *half) addFragment(decoder *hpack.Decoder, fragment []byte, ended bool) error {
	h.fragments = append(h.fragments, bytes.Clone(fragment))
	if !ended {
		return nil
	}
	block := bytes.Join(h.fragments, nil)
	h.fragments = nil

	fields, err := decoder.DecodeFull(block)
	if err != nil {
		return fmt.Errorf("failed to decode headers: %w", err)
	}
	if h.blocks == 0 {
		h.headers = fields
	} else {
		h.trailers = append(h.trailers, fields...)
	}
	h.blocks++
	return nil
}

func buildRequest(id string, s *stream, ts time.Time) models.CompletedRequest {
	pseudo, headers := splitFields(s.client.headers)

	url := pseudo[":path"]
	if authority := pseudo[":authority"]; authority != "" {
		scheme := pseudo[":scheme"]
		if scheme == "" {
			scheme = "http"
		}
		url = scheme + "://" + authority + url
	}

	return models.CompletedRequest{
		ID:         id,
		Method:     pseudo[":method"],
		URL:        url,
		ProtoMajor: 2,
		Headers:    headers,
		Body:       bytes.Join(s.client.data, nil),
		Timestamp:  ts,
	}
}

func buildResponse(id string, s *stream, ts time.Time) models.CompletedResponse {
	pseudo, headers := splitFields(s.server.headers)
	_, trailers := splitFields(s.server.trailers)

	// A gRPC trailers-only response carries its status in the only header block.
	if s.server.blocks == 1 && s.server.ended && models.Header(headers, "grpc-status") != "" {
		trailers = headers
	}

	code, _ := strconv.Atoi(pseudo[":status"])
	return models.CompletedResponse{
		ID:            id,
		StatusCode:    code,
		StatusMessage: http.StatusText(code),
		Headers:       headers,
		Trailers:      trailers,
		Body:          bytes.Join(s.server.data, nil),
		Timestamp:     ts,
	}
}

// splitFields separates pseudo-headers from regular ones. Repeated regular
// headers are joined with ", ".
func splitFields(fields []hpack.HeaderField) (pseudo, regular map[string]string) {
	pseudo = map[string]string{}
	regular = map[string]string{}
	for _, f := range fields {
		if strings.HasPrefix(f.Name, ":") {
			pseudo[f.Name] = f.Value
			continue
		}
		if prev, ok := regular[f.Name]; ok {
			regular[f.Name] = prev + ", " + f.Value
			continue
		}
		regular[f.Name] = f.Value
	}
	return pseudo, regular
}
