package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"safetynet/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Start schedulers (deadline sweeper, audit relay).
func main() {
	cmd := &cobra.Command{
		Use:   "safetynet-worker",
		Short: "Governance background worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.BuildWorker()
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Printf("worker shutdown close failed: %v", err)
				}
			}()
			return app.Run(context.Background())
		},
	}
	if err := cmd.Execute(); err != nil {
		log.Fatalf("safetynet worker stopped with error: %v", err)
	}
}
