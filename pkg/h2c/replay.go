package h2c

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/pkg/models"
)

var ErrAlreadyStarted = errors.New("replay already started")

// Capture is one recorded connection: everything the client sent and
// everything the server sent back.
type Capture struct {
	Client []byte
	Server []byte
}

// ReplaySource is a models.Source that reports the exchanges found in
// recorded captures instead of listening for live traffic.
type ReplaySource struct {
	logger   *zap.Logger
	captures []Capture

	mu         sync.Mutex
	started    bool
	onRequest  func(models.CompletedRequest)
	onResponse func(models.CompletedResponse)
}

func NewReplaySource(logger *zap.Logger, captures ...Capture) *ReplaySource {
	return &ReplaySource{logger: logger, captures: captures}
}

func (r *ReplaySource) OnRequest(handler func(models.CompletedRequest)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRequest = handler
}

func (r *ReplaySource) OnResponse(handler func(models.CompletedResponse)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResponse = handler
}

// Start parses every capture and reports its exchanges before returning.
// port is only logged; nothing is bound. A capture that fails to parse stops
// the replay, and exchanges from earlier captures stay reported.
func (r *ReplaySource) Start(ctx context.Context, port int) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	onRequest, onResponse := r.onRequest, r.onResponse
	r.mu.Unlock()

	r.logger.Debug("replaying captures", zap.Int("captures", len(r.captures)), zap.Int("port", port))

	for i, c := range r.captures {
		exchanges, err := ParseConversation(r.logger, c.Client, c.Server)
		if err != nil {
			r.logger.Error("failed to parse capture", zap.Int("capture", i), zap.Error(err))
			return err
		}
		for _, ex := range exchanges {
			if err := ctx.Err(); err != nil {
				return err
			}
			if onRequest != nil {
				onRequest(ex.Request)
			}
			if ex.Response != nil && onResponse != nil {
				onResponse(*ex.Response)
			}
		}
	}
	return nil
}

// Stop allows the source to be started again.
func (r *ReplaySource) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	return nil
}

var _ models.Source = (*ReplaySource)(nil)
