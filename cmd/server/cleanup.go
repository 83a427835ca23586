package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loanvault/document-consent-api/internal/service"
)

func cleanupCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run one expiry sweep over batches and documents, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := service.NewCleanupService(a.stores.Batches, a.stores.Documents, a.logger).Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batches deleted: %d\ndocuments deleted: %d\n",
				result.BatchesDeleted, result.DocumentsDeleted)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "sweep timeout")
	return cmd
}
