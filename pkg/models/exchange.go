package models

import (
	"strings"
	"time"
)

// CompletedRequest is a request as handed over by the capturing proxy.
type CompletedRequest struct {
	ID         string            `json:"id" yaml:"id"`
	Method     string            `json:"method" yaml:"method"`
	URL        string            `json:"url" yaml:"url"`
	ProtoMajor int               `json:"proto_major" yaml:"proto_major"`
	Headers    map[string]string `json:"headers" yaml:"headers"`
	Body       []byte            `json:"body" yaml:"body"`
	Timestamp  time.Time         `json:"timestamp" yaml:"timestamp"`
}

// CompletedResponse shares its ID with the request it answers.
type CompletedResponse struct {
	ID            string            `json:"id" yaml:"id"`
	StatusCode    int               `json:"status_code" yaml:"status_code"`
	StatusMessage string            `json:"status_message" yaml:"status_message"`
	Headers       map[string]string `json:"headers" yaml:"headers"`
	Trailers      map[string]string `json:"trailers" yaml:"trailers,omitempty"`
	Body          []byte            `json:"body" yaml:"body"`
	Timestamp     time.Time         `json:"timestamp" yaml:"timestamp"`
}

// HttpExchange pairs a request with its response once one has arrived.
type HttpExchange struct {
	Request  CompletedRequest   `json:"request" yaml:"request"`
	Response *CompletedResponse `json:"response,omitempty" yaml:"response,omitempty"`
}

// Header looks up a header case-insensitively.
func Header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
