// Package cli builds the wireprobe command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
)

type HookFunc func(context.Context, *zap.Logger, *config.Config, *CmdConfigurator) *cobra.Command

// Registered holds the registered command hooks
var Registered map[string]HookFunc

func Register(name string, f HookFunc) {
	if Registered == nil {
		Registered = make(map[string]HookFunc)
	}
	Registered[name] = f
}
