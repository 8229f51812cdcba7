package models

import (
	"fmt"

	"github.com/fatih/color"
)

// Body kinds reported by the inspector.
type BodyKind string

const (
	BodyEmpty    BodyKind = "empty"
	BodyGrpc     BodyKind = "grpc"
	BodyProtobuf BodyKind = "protobuf"
	BodyOther    BodyKind = "other"
)

var orangeColorSGR = []color.Attribute{38, 5, 208}

var IsAnsiDisabled = false

var HighlightString = func(a ...interface{}) string {
	if IsAnsiDisabled {
		return fmt.Sprint(a...)
	}
	return color.New(orangeColorSGR...).SprintFunc()(a...)
}

var HighlightGrayString = func(a ...interface{}) string {
	if IsAnsiDisabled {
		return fmt.Sprint(a...)
	}
	return color.New(color.FgHiBlack).SprintFunc()(a...)
}

var HighlightFailingString = func(a ...interface{}) string {
	if IsAnsiDisabled {
		return fmt.Sprint(a...)
	}
	return color.New(color.FgRed).SprintFunc()(a...)
}
