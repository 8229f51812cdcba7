package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"go.wireprobe.io/wireprobe/pkg/render"
	"go.wireprobe.io/wireprobe/utils"
)

func init() {
	Register("decode", Decode)
}

func Decode(ctx context.Context, logger *zap.Logger, cfg *config.Config, cmdConfigurator *CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "decode <file>",
		Short:   "decode a protobuf message without its schema",
		Example: `wireprobe decode msg.bin --maxDepth 2 -o yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := utils.ReadInput(args[0], config.InputEncoding(cfg.Input), cmd.InOrStdin())
			if err != nil {
				utils.LogError(logger, err, "failed to read input")
				return err
			}
			tree, err := protobuf.ParseStructural(data)
			if err != nil {
				utils.LogError(logger, err, "failed to decode message", zap.String("file", args[0]))
				return err
			}
			return newRenderer(cfg).Write(cmd.OutOrStdout(), data, tree)
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add decode flags")
		return nil
	}
	return cmd
}

func newRenderer(cfg *config.Config) *render.Renderer {
	format, _ := render.ParseFormat(cfg.Output)
	return render.New(render.Options{
		Format:            format,
		MaxDepth:          cfg.Decode.MaxDepth,
		ExplicitWireTypes: cfg.Decode.ExplicitWireTypes,
		NoColor:           cfg.DisableANSI,
	})
}
