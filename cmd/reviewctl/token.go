package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/pkg/jwt"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		reviewerID int64
		role       string
		hours      int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		Long: `token signs a JWT with the configured shared secret.

Production tokens come from the identity service; use this only against
development deployments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reviewerID <= 0 {
				return errors.New("--reviewer must be a positive id")
			}
			if a.cfg.JWT.Secret == "" {
				return errors.New("jwt.secret is not configured")
			}
			token, err := jwt.GenerateToken(reviewerID, role, a.cfg.JWT.Secret, hours)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&reviewerID, "reviewer", 0, "Reviewer id placed in the token")
	cmd.Flags().StringVar(&role, "role", model.RoleReviewer, "Role claim")
	cmd.Flags().IntVar(&hours, "hours", 24, "Token lifetime in hours")
	_ = cmd.MarkFlagRequired("reviewer")

	return cmd
}
