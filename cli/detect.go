package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"go.wireprobe.io/wireprobe/pkg/render"
	"go.wireprobe.io/wireprobe/utils"
	"golang.org/x/sync/errgroup"
)

func init() {
	Register("detect", Detect)
}

type detection struct {
	File      string `json:"file" yaml:"file"`
	Size      int    `json:"size" yaml:"size"`
	Signature bool   `json:"signature" yaml:"signature"`
	Valid     bool   `json:"valid" yaml:"valid"`
	// GrpcFrame is set when the input is a single well-formed gRPC frame
	// around a valid message.
	GrpcFrame bool `json:"grpc_frame" yaml:"grpc_frame"`
}

func Detect(ctx context.Context, logger *zap.Logger, cfg *config.Config, cmdConfigurator *CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "detect <file>...",
		Short:   "report whether files look like and parse as protobuf",
		Example: "wireprobe detect body1.bin body2.bin --concurrency 8",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := detectFiles(ctx, cfg, args, cmd.InOrStdin())
			if err != nil {
				utils.LogError(logger, err, "failed to check files")
				return err
			}
			format, _ := render.ParseFormat(cfg.Output)

			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.File, strconv.Itoa(r.Size), yesNo(r.Signature), yesNo(r.Valid), yesNo(r.GrpcFrame)}
			}
			return writeReport(cmd.OutOrStdout(), format, results,
				[]string{"File", "Size", "Signature", "Valid", "gRPC frame"}, rows)
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add detect flags")
		return nil
	}
	return cmd
}

// detectFiles checks files in parallel. Results keep the order of files.
func detectFiles(ctx context.Context, cfg *config.Config, files []string, stdin io.Reader) ([]detection, error) {
	results := make([]detection, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Detect.Concurrency)

	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := utils.ReadInput(file, config.InputEncoding(cfg.Input), stdin)
			if err != nil {
				return err
			}
			results[i] = detect(file, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func detect(file string, data []byte) detection {
	d := detection{
		File:      file,
		Size:      len(data),
		Signature: protobuf.LooksLikeProtobuf(data),
		Valid:     protobuf.IsValidProtobuf(data),
	}
	if frame, rest, err := protobuf.ReadGrpcFrame(data); err == nil && len(rest) == 0 {
		d.GrpcFrame = frame.Length == 0 || protobuf.IsValidProtobuf(frame.Payload)
	}
	return d
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
