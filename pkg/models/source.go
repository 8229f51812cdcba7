package models

import "context"

// Source is the capturing proxy as seen from the store: something that can be
// started and stopped and that reports requests and responses as they
// complete. Handlers may be invoked from any goroutine.
type Source interface {
	Start(ctx context.Context, port int) error
	Stop(ctx context.Context) error
	OnRequest(handler func(CompletedRequest))
	OnResponse(handler func(CompletedResponse))
}
