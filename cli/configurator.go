package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/pkg/models"
	"go.wireprobe.io/wireprobe/pkg/render"
	"go.wireprobe.io/wireprobe/utils"
	"go.wireprobe.io/wireprobe/utils/log"
)

// flagKeys maps flags onto nested config keys. Other flags share their name
// with a top level key.
var flagKeys = map[string]string{
	"maxDepth":             "decode.maxDepth",
	"explicitWireTypes":    "decode.explicitWireTypes",
	"allFrames":            "decode.allFrames",
	"grpcContentTypes":     "inspect.grpcContentTypes",
	"protobufContentTypes": "inspect.protobufContentTypes",
	"concurrency":          "detect.concurrency",
	"port":                 "capture.port",
}

// flagAliases are spellings that do not follow from the kebab-case rule.
var flagAliases = map[string]string{
	"disable-ansi": "disableANSI",
}

type CmdConfigurator struct {
	logger *zap.Logger
	cfg    *config.Config
	v      *viper.Viper
}

func NewCmdConfigurator(logger *zap.Logger, cfg *config.Config) *CmdConfigurator {
	return &CmdConfigurator{
		logger: logger,
		cfg:    cfg,
		v:      viper.New(),
	}
}

func (c *CmdConfigurator) AddPersistentFlags(cmd *cobra.Command) error {
	input := config.InputEncoding(c.cfg.Input)

	cmd.PersistentFlags().Bool("debug", c.cfg.Debug, "Run in debug mode")
	cmd.PersistentFlags().Bool("disableANSI", c.cfg.DisableANSI, "Disable ANSI colour codes in logs and output")
	cmd.PersistentFlags().String("configPath", c.cfg.ConfigPath, "Path to the directory holding "+config.FileName)
	cmd.PersistentFlags().String("logFile", c.cfg.LogFile, "Also write logs to this file")
	cmd.PersistentFlags().VarP(&input, "input", "i", "Encoding of input files: raw, hex or base64")
	cmd.PersistentFlags().StringP("output", "o", c.cfg.Output, "Output format: text, json, yaml, table or protoscope")

	cmd.SetGlobalNormalizationFunc(aliasNormalizeFunc)
	return nil
}

// AddFlags adds the flags of the named command.
func (c *CmdConfigurator) AddFlags(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "decode", "grpc", "inspect", "replay":
		cmd.Flags().Int("maxDepth", c.cfg.Decode.MaxDepth, "How many levels of nested messages to expand")
		cmd.Flags().Bool("explicitWireTypes", c.cfg.Decode.ExplicitWireTypes, "Annotate every field with its wire type")
	}

	switch cmd.Name() {
	case "detect":
		cmd.Flags().Int("concurrency", c.cfg.Detect.Concurrency, "Number of files checked in parallel")
	case "grpc":
		cmd.Flags().Bool("allFrames", c.cfg.Decode.AllFrames, "Decode every frame instead of only the first")
	case "encode":
		emit := config.InputRaw
		cmd.Flags().Var(&emit, "emit", "Encoding of the written bytes: raw, hex or base64")
		cmd.Flags().Bool("grpc", false, "Wrap the message in a gRPC length-prefixed frame")
	case "inspect":
		cmd.Flags().StringArrayP("header", "H", nil, `Header of the captured message, as "name: value"`)
		c.addInspectFlags(cmd)
	case "replay":
		cmd.Flags().String("client", "", "Bytes the client sent on the h2c connection")
		cmd.Flags().String("server", "", "Bytes the server sent on the h2c connection")
		cmd.Flags().Int("port", c.cfg.Capture.Port, "Proxy port the capture was taken on")
		cmd.Flags().String("save", "", "Directory to append the decoded exchanges to, as exchanges.yaml")
		c.addInspectFlags(cmd)
		if err := cmd.MarkFlagRequired("client"); err != nil {
			return err
		}
	case "config":
		cmd.Flags().Bool("generate", false, "Write the configuration file with every key, keeping existing values")
	}
	return nil
}

func (c *CmdConfigurator) addInspectFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("grpcContentTypes", c.cfg.Inspect.GrpcContentTypes, "Content types decoded as gRPC")
	cmd.Flags().StringSlice("protobufContentTypes", c.cfg.Inspect.ProtobufContentTypes, "Content types decoded as a single protobuf message")
}

// Validate loads the configuration file, overlays the flags of cmd and checks
// the result. It also applies the logging settings.
func (c *CmdConfigurator) Validate(_ context.Context, cmd *cobra.Command) error {
	configPath, err := cmd.Flags().GetString("configPath")
	if err != nil {
		utils.LogError(c.logger, err, "failed to read the config path")
		return err
	}
	c.v.SetConfigName(strings.TrimSuffix(config.FileName, ".yaml"))
	c.v.SetConfigType("yaml")
	c.v.AddConfigPath(configPath)
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			errMsg := "failed to read config file"
			utils.LogError(c.logger, err, errMsg)
			return errors.New(errMsg)
		}
		c.logger.Debug("config file not found; proceeding with flags only", zap.String("path", configPath))
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = f.Name
		}
		if err := c.v.BindPFlag(key, f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		utils.LogError(c.logger, bindErr, "failed to bind flags to config")
		return bindErr
	}

	if err := c.v.Unmarshal(c.cfg); err != nil {
		errMsg := "failed to unmarshal the config"
		utils.LogError(c.logger, err, errMsg)
		return errors.New(errMsg)
	}

	if err := checkConfig(c.cfg); err != nil {
		utils.LogError(c.logger, err, "invalid configuration")
		return err
	}

	models.IsAnsiDisabled = c.cfg.DisableANSI
	if c.cfg.DisableANSI || c.cfg.LogFile != "" {
		logger, err := log.New(log.Options{DisableANSI: c.cfg.DisableANSI, LogFile: c.cfg.LogFile})
		if err != nil {
			utils.LogError(c.logger, err, "failed to rebuild the logger")
			return err
		}
		*c.logger = *logger
	}
	if c.cfg.Debug {
		logger, err := log.ChangeLogLevel(zap.DebugLevel)
		if err != nil {
			errMsg := "failed to change log level"
			utils.LogError(c.logger, err, errMsg)
			return errors.New(errMsg)
		}
		*c.logger = *logger
	}
	c.logger.Debug("config has been initialised", zap.String("for cmd", cmd.Name()), zap.Any("config", c.cfg))
	return nil
}

func checkConfig(cfg *config.Config) error {
	var input config.InputEncoding
	if err := input.Set(cfg.Input); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if _, err := render.ParseFormat(cfg.Output); err != nil {
		return err
	}
	if cfg.Decode.MaxDepth < 0 {
		return fmt.Errorf("maxDepth must not be negative, got %d", cfg.Decode.MaxDepth)
	}
	if cfg.Detect.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", cfg.Detect.Concurrency)
	}
	return nil
}

// aliasNormalizeFunc lets every camelCase flag also be spelled in kebab case,
// so --max-depth and --maxDepth are the same flag.
func aliasNormalizeFunc(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if alias, ok := flagAliases[name]; ok {
		return pflag.NormalizedName(alias)
	}
	if !strings.Contains(name, "-") {
		return pflag.NormalizedName(name)
	}
	var sb strings.Builder
	upper := false
	for _, r := range name {
		if r == '-' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return pflag.NormalizedName(sb.String())
}
