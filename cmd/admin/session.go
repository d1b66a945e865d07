package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"ledgerlink/internal/domain/session"
	"ledgerlink/internal/infrastructure/provider"
)

func newCreateSessionCmd() *cobra.Command {
	var (
		userID  string
		product string
		email   string
	)

	cmd := &cobra.Command{
		Use:     "create-session",
		Short:   "Create a provider linking session for a user",
		Example: `  admin create-session --user=user-123 --type=card_switcher --email=jane@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			productType, err := session.ParseProductType(product)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := provider.NewClient(provider.Config{
				BaseURL:      cfg.Provider.BaseURL,
				ClientID:     cfg.Provider.ClientID,
				ClientSecret: cfg.Provider.ClientSecret,
				APIVersion:   cfg.Provider.APIVersion,
				Timeout:      cfg.Provider.Timeout,
			})
			service := session.NewService(client, session.RetryPolicy{
				MaxAttempts: cfg.Provider.MaxAttempts,
				Backoff:     cfg.Provider.RetryBackoff,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			sess, err := service.Create(ctx, userID, productType, email)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "External user id")
	cmd.Flags().StringVar(&product, "type", string(session.ProductTransactionLink), "Product type (card_switcher or transaction_link)")
	cmd.Flags().StringVar(&email, "email", "", "Optional user email")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
