package cmd

import (
	"github.com/spf13/cobra"

	database "github.com/FACorreiaa/go-withbaby/internal/db"
	"github.com/FACorreiaa/go-withbaby/pkg/logger"
)

func migrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the embedded schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := connectionURL()
			if err != nil {
				return err
			}
			return database.RunMigrations(url, logger.L())
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := connectionURL()
			if err != nil {
				return err
			}
			return database.RollbackMigrations(url, steps, logger.L())
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(up, down)
	return migrateCmd
}

func connectionURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	dbConfig, err := database.NewDatabaseConfig(cfg, logger.L())
	if err != nil {
		return "", err
	}
	return dbConfig.ConnectionURL, nil
}
