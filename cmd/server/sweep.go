// cmd/server/sweep.go
package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/javajoker/couponx-backend/internal/database"
	"github.com/javajoker/couponx-backend/internal/services"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance pass and print what it did",
		Long: `Run one maintenance pass:
  - delete rate-limit counters whose window ended long ago
  - expire active listings past their expiration date
  - cancel pending purchases that were never paid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg, false)
			if err != nil {
				return err
			}
			defer database.Close(db)

			svc, err := services.New(db, cfg, nil, nil)
			if err != nil {
				return err
			}

			report, err := svc.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
