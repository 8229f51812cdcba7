package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.wireprobe.io/wireprobe/config"
	"go.wireprobe.io/wireprobe/utils"
	yaml3 "gopkg.in/yaml.v3"
)

func init() {
	Register("config", Config)
}

func Config(ctx context.Context, logger *zap.Logger, cfg *config.Config, cmdConfigurator *CmdConfigurator) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "config",
		Short:   "print the effective configuration or write the configuration file",
		Example: "wireprobe config --generate --configPath /path/to/localdir",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			isGenerate, err := cmd.Flags().GetBool("generate")
			if err != nil {
				utils.LogError(logger, err, "failed to get generate flag")
				return err
			}

			if !isGenerate {
				out, err := yaml3.Marshal(cfg)
				if err != nil {
					utils.LogError(logger, err, "failed to marshal the config")
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			filePath := filepath.Join(cfg.ConfigPath, config.FileName)
			if err := generateConfig(filePath); err != nil {
				utils.LogError(logger, err, "failed to write config file", zap.String("path", filePath))
				return err
			}
			logger.Info("config file written", zap.String("path", filePath))
			return nil
		},
	}

	if err := cmdConfigurator.AddFlags(cmd); err != nil {
		utils.LogError(logger, err, "failed to add config flags")
		return nil
	}
	return cmd
}

// generateConfig writes the default configuration to filePath. Values already
// in the file win over the defaults.
func generateConfig(filePath string) error {
	content := config.GetDefaultConfig()
	if utils.CheckFileExists(filePath) {
		existing, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			content, err = config.Merge(string(existing), content)
			if err != nil {
				return err
			}
		}
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filePath, []byte(content), 0o644)
}
