// Package utils holds helpers shared by the wireprobe commands.
package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"go.uber.org/zap"
)

var Version string

// LogError logs err at error level unless it only reports that the work was
// cancelled. err may be nil.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Error(msg, fields...)
}

// HandlePanic must be deferred directly. It logs the recovered value with its
// stack trace and exits with status 1.
func HandlePanic(logger *zap.Logger) {
	if r := recover(); r != nil {
		stackTrace := debug.Stack()
		if logger != nil {
			logger.Error("recovered from panic", zap.String("panic", fmt.Sprint(r)), zap.String("stack trace", string(stackTrace)))
			_ = logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, "recovered from:", r, "\nstack trace:\n", string(stackTrace))
		}
		os.Exit(1)
	}
}

func CheckFileExists(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false
	}
	return true
}
