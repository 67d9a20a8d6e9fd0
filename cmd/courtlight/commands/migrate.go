package commands

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <db_path>",
		Short: "Creates or upgrades the database schema.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the store migrates it.
			a, err := bootstrap(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			a.log.Info("Database migrations completed successfully", "database", a.cfg.DatabasePath)
			return nil
		},
	}
}
