package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/inspect"
	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"go.wireprobe.io/wireprobe/pkg/render"
	"go.wireprobe.io/wireprobe/utils"
)

func init() {
	Register("grpc", Grpc)
}

func Grpc(ctx context.Context, logger *zap.Logger, cfg *config.Config, cmdConfigurator *CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "grpc <file>",
		Short:   "unwrap and decode the length-prefixed messages of a gRPC body",
		Example: `wireprobe grpc response.bin --allFrames=false`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := utils.ReadInput(args[0], config.InputEncoding(cfg.Input), cmd.InOrStdin())
			if err != nil {
				utils.LogError(logger, err, "failed to read input")
				return err
			}
			if !cfg.Decode.AllFrames {
				if _, rest, err := protobuf.ReadGrpcFrame(data); err == nil {
					data = data[:len(data)-len(rest)]
				}
			}

			msgs, decodeErr := inspect.GrpcMessages(data)
			if err := newRenderer(cfg).WriteMessages(cmd.OutOrStdout(), renderMessages(msgs)); err != nil {
				return err
			}
			if decodeErr != nil {
				utils.LogError(logger, decodeErr, "failed to decode gRPC body", zap.Int("decoded", len(msgs)))
				return decodeErr
			}
			return nil
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add grpc flags")
		return nil
	}
	return cmd
}

func renderMessages(msgs []inspect.Message) []render.Message {
	out := make([]render.Message, len(msgs))
	for i, m := range msgs {
		out[i] = render.Message{Raw: m.Raw, Tree: m.Tree}
	}
	return out
}
