package main

import (
	"fmt"
	"os"

	"go.wireprobe.io/wireprobe/cli"
	"go.wireprobe.io/wireprobe/utils"
	"go.wireprobe.io/wireprobe/utils/log"
)

// version is injected during build by ldflags.
var version string

func main() {
	if version == "" {
		version = "0-dev"
	}
	utils.Version = version
	os.Exit(start())
}

func start() int {
	logger, err := log.New(log.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start the logger for the CLI:", err)
		return 1
	}
	defer utils.HandlePanic(logger)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := utils.NewCtx(logger)
	defer cancel()

	rootCmd := cli.Root(ctx, logger)
	if rootCmd == nil {
		return 1
	}
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
