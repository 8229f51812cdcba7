// Package store keeps the list of captured exchanges and the capture server's
// status, fed by a models.Source.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/pkg/models"
)

type State struct {
	ServerStatus models.ServerStatus
	Exchanges    []models.HttpExchange
}

// Action is one of UpdateServerStatus, RequestReceived or ResponseCompleted.
type Action interface {
	isAction()
}

type UpdateServerStatus struct {
	Value models.ServerStatus
}

type RequestReceived struct {
	Request models.CompletedRequest
}

type ResponseCompleted struct {
	Response models.CompletedResponse
}

func (UpdateServerStatus) isAction() {}
func (RequestReceived) isAction()    {}
func (ResponseCompleted) isAction()  {}

// Reduce returns the state after applying action. state is not modified.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case RequestReceived:
		exchanges := make([]models.HttpExchange, len(state.Exchanges), len(state.Exchanges)+1)
		copy(exchanges, state.Exchanges)
		state.Exchanges = append(exchanges, models.HttpExchange{Request: a.Request})
	case ResponseCompleted:
		exchanges := slices.Clone(state.Exchanges)
		for i := range exchanges {
			if exchanges[i].Request.ID == a.Response.ID {
				resp := a.Response
				exchanges[i].Response = &resp
			}
		}
		state.Exchanges = exchanges
	case UpdateServerStatus:
		state.ServerStatus = a.Value
	}
	return state
}

type Store struct {
	logger    *zap.Logger
	mu        sync.RWMutex
	state     State
	listeners []func(State)
	source    models.Source
}

func New(logger *zap.Logger) *Store {
	return &Store{
		logger: logger,
		state:  State{ServerStatus: models.Connecting},
	}
}

// State returns a snapshot. The exchange slice must not be modified.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, action)
	state := s.state
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// Subscribe registers listener to be called after every dispatch.
func (s *Store) Subscribe(listener func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Attach starts source on port and feeds its events into the store. A port
// clash leaves the store in AlreadyInUse, any other start failure in
// UnknownError; both are also returned. Handlers are registered before the
// source starts.
func (s *Store) Attach(ctx context.Context, source models.Source, port int) error {
	source.OnRequest(func(req models.CompletedRequest) {
		s.Dispatch(RequestReceived{Request: req})
	})
	source.OnResponse(func(resp models.CompletedResponse) {
		s.Dispatch(ResponseCompleted{Response: resp})
	})

	if err := source.Start(ctx, port); err != nil {
		if errors.Is(err, models.ErrPortInUse) {
			s.logger.Info("capture server already in use", zap.Int("port", port))
			s.Dispatch(UpdateServerStatus{Value: models.AlreadyInUse})
		} else {
			s.logger.Error("failed to start capture server", zap.Int("port", port), zap.Error(err))
			s.Dispatch(UpdateServerStatus{Value: models.UnknownError})
		}
		return err
	}

	s.mu.Lock()
	s.source = source
	s.mu.Unlock()

	s.logger.Info("capture server started", zap.Int("port", port))
	s.Dispatch(UpdateServerStatus{Value: models.Connected})
	return nil
}

// Detach stops the attached source, if any.
func (s *Store) Detach(ctx context.Context) error {
	s.mu.Lock()
	source := s.source
	s.source = nil
	s.mu.Unlock()

	if source == nil {
		return nil
	}
	return source.Stop(ctx)
}
