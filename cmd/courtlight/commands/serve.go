package commands

import (
	"github.com/JustJay7/courtlight/internal/cache"
	"github.com/JustJay7/courtlight/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <db_path>",
		Short: "Serves a read-only JSON and CSV view of the database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.cfg, a.db, cache.NewCache(a.cfg.CacheSize, a.cfg.CacheTTL), a.log)

			a.log.Info("Starting courtlight admin API",
				"host", a.cfg.Host,
				"port", a.cfg.Port,
				"database", a.cfg.DatabasePath,
			)
			return srv.Run(cmd.Context())
		},
	}
}
