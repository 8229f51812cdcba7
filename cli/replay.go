package cli

import (
	"context"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/h2c"
	"go.wireprobe.io/wireprobe/pkg/inspect"
	"go.wireprobe.io/wireprobe/pkg/models"
	"go.wireprobe.io/wireprobe/pkg/platform/yaml"
	"go.wireprobe.io/wireprobe/pkg/render"
	"go.wireprobe.io/wireprobe/pkg/store"
	"go.wireprobe.io/wireprobe/utils"
)

func init() {
	Register("replay", Replay)
}

type bodyReport struct {
	Kind        models.BodyKind `json:"kind" yaml:"kind"`
	ContentType string          `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Messages    [][]render.Node `json:"messages,omitempty" yaml:"messages,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type exchangeReport struct {
	ID          string      `json:"id" yaml:"id"`
	Method      string      `json:"method" yaml:"method"`
	URL         string      `json:"url" yaml:"url"`
	StatusCode  int         `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	GrpcStatus  string      `json:"grpc_status,omitempty" yaml:"grpc_status,omitempty"`
	GrpcMessage string      `json:"grpc_message,omitempty" yaml:"grpc_message,omitempty"`
	Request     bodyReport  `json:"request" yaml:"request"`
	Response    *bodyReport `json:"response,omitempty" yaml:"response,omitempty"`
}

func Replay(ctx context.Context, logger *zap.Logger, cfg *config.Config, cmdConfigurator *CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "replay",
		Short:   "decode the exchanges of a recorded h2c connection",
		Example: `wireprobe replay --client client.h2c --server server.h2c -o json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientPath, _ := cmd.Flags().GetString("client")
			serverPath, _ := cmd.Flags().GetString("server")

			capture, err := readCapture(cfg, clientPath, serverPath, cmd.InOrStdin())
			if err != nil {
				utils.LogError(logger, err, "failed to read capture")
				return err
			}

			st := store.New(logger)
			st.Subscribe(func(s store.State) {
				logger.Debug("exchange store updated", zap.Stringer("status", s.ServerStatus), zap.Int("exchanges", len(s.Exchanges)))
			})
			if err := st.Attach(ctx, h2c.NewReplaySource(logger, capture), cfg.Capture.Port); err != nil {
				return err
			}
			defer func() {
				if err := st.Detach(ctx); err != nil {
					utils.LogError(logger, err, "failed to stop replay")
				}
			}()

			reports := reportExchanges(newInspector(logger, cfg), st.State().Exchanges, cfg.Decode.MaxDepth)
			if saveDir, _ := cmd.Flags().GetString("save"); saveDir != "" {
				if err := saveExchanges(ctx, logger, saveDir, reports); err != nil {
					utils.LogError(logger, err, "failed to save exchanges", zap.String("path", saveDir))
					return err
				}
				logger.Info("saved exchanges", zap.Int("count", len(reports)), zap.String("path", saveDir))
			}
			format, _ := render.ParseFormat(cfg.Output)
			rows := make([][]string, len(reports))
			for i, r := range reports {
				rows[i] = exchangeRow(r)
			}
			return writeReport(cmd.OutOrStdout(), format, reports,
				[]string{"ID", "Method", "URL", "Status", "gRPC status", "Request", "Response"}, rows)
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add replay flags")
		return nil
	}
	return cmd
}

func readCapture(cfg *config.Config, clientPath, serverPath string, stdin io.Reader) (h2c.Capture, error) {
	var (
		capture h2c.Capture
		err     error
	)
	capture.Client, err = utils.ReadInput(clientPath, config.InputEncoding(cfg.Input), stdin)
	if err != nil {
		return capture, err
	}
	if serverPath != "" {
		capture.Server, err = utils.ReadInput(serverPath, config.InputEncoding(cfg.Input), stdin)
	}
	return capture, err
}

// saveExchanges appends reports to dir/exchanges.yaml, one document each.
func saveExchanges(ctx context.Context, logger *zap.Logger, dir string, reports []exchangeReport) error {
	docs := make([]*yaml.NetworkTrafficDoc, 0, len(reports))
	for _, r := range reports {
		kind := yaml.HTTP
		if r.Request.Kind == models.BodyGrpc {
			kind = yaml.GRPC
		}
		doc, err := yaml.NewDoc(kind, r.ID, r)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	return yaml.WriteDocs(ctx, logger, dir, "exchanges", docs...)
}

func reportExchanges(insp *inspect.Inspector, exchanges []models.HttpExchange, maxDepth int) []exchangeReport {
	reports := make([]exchangeReport, 0, len(exchanges))
	for _, ex := range exchanges {
		r := exchangeReport{
			ID:      ex.Request.ID,
			Method:  ex.Request.Method,
			URL:     ex.Request.URL,
			Request: reportBody(insp.Inspect(ex.Request.Headers, ex.Request.Body), maxDepth),
		}
		if resp := ex.Response; resp != nil {
			r.StatusCode = resp.StatusCode
			if code, msg, ok := inspect.GrpcStatus(resp.Trailers); ok {
				r.GrpcStatus = code.String()
				r.GrpcMessage = msg
			}
			body := reportBody(insp.Inspect(resp.Headers, resp.Body), maxDepth)
			r.Response = &body
		}
		reports = append(reports, r)
	}
	return reports
}

func reportBody(in inspect.Inspection, maxDepth int) bodyReport {
	b := bodyReport{Kind: in.Kind, ContentType: in.ContentType}
	for _, m := range in.Messages {
		b.Messages = append(b.Messages, render.Nodes(m.Tree, maxDepth))
	}
	if in.Err != nil {
		b.Error = in.Err.Error()
	}
	return b
}

func exchangeRow(r exchangeReport) []string {
	status := "pending"
	response := ""
	if r.Response != nil {
		status = strconv.Itoa(r.StatusCode)
		response = summarizeBody(*r.Response)
	}
	grpcStatus := r.GrpcStatus
	if r.GrpcMessage != "" {
		grpcStatus += ": " + r.GrpcMessage
	}
	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return []string{id, r.Method, r.URL, status, grpcStatus, summarizeBody(r.Request), response}
}

func summarizeBody(b bodyReport) string {
	s := string(b.Kind)
	switch b.Kind {
	case models.BodyGrpc, models.BodyProtobuf:
		s += " (" + strconv.Itoa(len(b.Messages)) + " msg)"
	}
	if b.Error != "" {
		s += " " + models.HighlightFailingString("error: "+b.Error)
	}
	return s
}
