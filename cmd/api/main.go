package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"safetynet/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server.
func main() {
	cmd := &cobra.Command{
		Use:   "safetynet-api",
		Short: "Governance API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.BuildAPI()
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Printf("api shutdown close failed: %v", err)
				}
			}()
			return app.Run(context.Background())
		},
	}
	if err := cmd.Execute(); err != nil {
		log.Fatalf("safetynet api stopped with error: %v", err)
	}
}
