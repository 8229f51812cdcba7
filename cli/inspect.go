package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/inspect"
	"go.wireprobe.io/wireprobe/pkg/models"
	"go.wireprobe.io/wireprobe/utils"
)

func init() {
	Register("inspect", Inspect)
}

func Inspect(ctx context.Context, logger *zap.Logger, cfg *config.Config, cmdConfigurator *CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "inspect <file>",
		Short:   "decode a captured HTTP body the way its headers describe it",
		Example: `wireprobe inspect body.bin -H "content-type: application/grpc" -H "content-encoding: gzip"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawHeaders, err := cmd.Flags().GetStringArray("header")
			if err != nil {
				return err
			}
			headers, err := parseHeaders(rawHeaders)
			if err != nil {
				utils.LogError(logger, err, "invalid header")
				return err
			}
			body, err := utils.ReadInput(args[0], config.InputEncoding(cfg.Input), cmd.InOrStdin())
			if err != nil {
				utils.LogError(logger, err, "failed to read input")
				return err
			}

			result := newInspector(logger, cfg).Inspect(headers, body)
			logger.Info("inspected body",
				zap.String("kind", string(result.Kind)),
				zap.String("content-type", result.ContentType),
				zap.Int("messages", len(result.Messages)))

			if result.Kind == models.BodyProtobuf || result.Kind == models.BodyGrpc {
				if err := newRenderer(cfg).WriteMessages(cmd.OutOrStdout(), renderMessages(result.Messages)); err != nil {
					return err
				}
			}
			if result.Err != nil {
				utils.LogError(logger, result.Err, "failed to decode body")
				return result.Err
			}
			return nil
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add inspect flags")
		return nil
	}
	return cmd
}

func newInspector(logger *zap.Logger, cfg *config.Config) *inspect.Inspector {
	return inspect.New(logger, inspect.Config{
		GrpcContentTypes:     cfg.Inspect.GrpcContentTypes,
		ProtobufContentTypes: cfg.Inspect.ProtobufContentTypes,
	})
}

// parseHeaders reads "name: value" pairs. Names are lower-cased as in HTTP/2.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q is not of the form \"name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
