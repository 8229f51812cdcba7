package models

import "errors"

type ServerStatus int

const (
	Connecting ServerStatus = iota
	Connected
	AlreadyInUse
	UnknownError
)

func (s ServerStatus) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case AlreadyInUse:
		return "already in use"
	case UnknownError:
		return "unknown error"
	}
	return "invalid"
}

// ErrPortInUse is returned by a Source whose port is already taken, usually
// by another instance.
var ErrPortInUse = errors.New("proxy port already in use")
