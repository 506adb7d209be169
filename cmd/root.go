package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/go-withbaby/internal/pkg/config"
	"github.com/FACorreiaa/go-withbaby/pkg/logger"
)

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	var (
		envFile  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:           "withbaby",
		Short:         "Family-friendly places API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := zapcore.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		if err := logger.Init(level, zap.String("service", "withbaby")); err != nil {
			return err
		}
		if err := godotenv.Load(envFile); err != nil {
			logger.L().Warn("No dotenv file loaded, using process environment", zap.String("file", envFile), zap.Error(err))
		}
		return nil
	}

	rootCmd.AddCommand(serveCommand(), migrateCommand())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}
