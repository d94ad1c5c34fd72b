package cli

import (
	"os"

	"github.com/spf13/cobra"

	"raise-service/internal/config"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	config.LoadEnv()

	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "raise",
		Short:        "Research AI ethics guidance: decision paths, readiness scoring and compliance tracking",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewEvaluateCmd())
	cmd.AddCommand(NewScoreCmd(&configPath))
	cmd.AddCommand(NewGraphCmd())
	cmd.AddCommand(NewRenderCmd())
	cmd.AddCommand(NewValidateCmd())
	return cmd
}
