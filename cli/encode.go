package cli

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/protocolbuffers/protoscope"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/protobuf"
	"go.wireprobe.io/wireprobe/utils"
)

func init() {
	Register("encode", Encode)
}

func Encode(ctx context.Context, logger *zap.Logger, cfg *config.Config, cmdConfigurator *CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "encode <file>",
		Short:   "build wire bytes from protoscope text",
		Example: `echo '1: 150 2: {"hi"}' | wireprobe encode - --grpc --emit hex`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text []byte
				err  error
			)
			if args[0] == "-" {
				text, err = io.ReadAll(cmd.InOrStdin())
			} else {
				text, err = os.ReadFile(args[0])
			}
			if err != nil {
				utils.LogError(logger, err, "failed to read input")
				return err
			}

			grpc, err := cmd.Flags().GetBool("grpc")
			if err != nil {
				return err
			}
			out, err := encodeProtoscope(string(text), grpc)
			if err != nil {
				utils.LogError(logger, err, "failed to encode message")
				return err
			}
			return emit(cmd.OutOrStdout(), config.InputEncoding(cmd.Flags().Lookup("emit").Value.String()), out)
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add encode flags")
		return nil
	}
	return cmd
}

func encodeProtoscope(text string, grpc bool) ([]byte, error) {
	out, err := protoscope.NewScanner(text).Exec()
	if err != nil {
		return nil, fmt.Errorf("invalid protoscope: %w", err)
	}
	if grpc {
		out = protobuf.EncodeGrpcFrame(out)
	}
	return out, nil
}

func emit(w io.Writer, encoding config.InputEncoding, data []byte) error {
	var err error
	switch encoding {
	case config.InputHex:
		_, err = fmt.Fprintln(w, hex.EncodeToString(data))
	case config.InputBase64:
		_, err = fmt.Fprintln(w, base64.StdEncoding.EncodeToString(data))
	default:
		_, err = w.Write(data)
	}
	return err
}
