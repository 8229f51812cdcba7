package cli

import (
	"context"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/utils"
)

var rootCustomHelpTemplate = `{{.Short}}

Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Available Commands:{{range .Commands}}{{if .IsAvailableCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}

Examples:
{{.Example}}

Use "{{.CommandPath}} [command] --help" for more information about a command.
`

var RootExamples = `
  Detect:
	wireprobe detect body1.bin body2.bin

  Decode:
	wireprobe decode msg.hex --input hex --output json

  gRPC:
	wireprobe grpc request.bin --allFrames=false

  Encode:
	echo '1: 150 2: {"hi"}' | wireprobe encode - --grpc > request.bin

  Inspect:
	wireprobe inspect body.bin -H "content-type: application/grpc" -H "content-encoding: gzip"

  Replay:
	wireprobe replay --client client.h2c --server server.h2c
`

func Root(ctx context.Context, logger *zap.Logger) *cobra.Command {
	conf := config.New()
	cmdConfigurator := NewCmdConfigurator(logger, conf)

	var rootCmd = &cobra.Command{
		Use:          "wireprobe",
		Short:        "Inspect protobuf and gRPC payloads captured from HTTP traffic",
		Example:      RootExamples,
		Version:      utils.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmdConfigurator.Validate(ctx, cmd)
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpTemplate(rootCustomHelpTemplate)
	rootCmd.SetVersionTemplate(`{{with .Version}}{{printf "wireprobe %s" .}}{{end}}{{"\n"}}`)

	if err := cmdConfigurator.AddPersistentFlags(rootCmd); err != nil {
		utils.LogError(logger, err, "failed to set flags")
		return nil
	}

	for _, name := range slices.Sorted(maps.Keys(Registered)) {
		c := Registered[name](ctx, logger, conf, cmdConfigurator)
		if c == nil {
			continue
		}
		rootCmd.AddCommand(c)
	}
	return rootCmd
}
