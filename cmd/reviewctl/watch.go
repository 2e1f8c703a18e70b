package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/qs3c/slide_review_server/internal/database"
	"github.com/qs3c/slide_review_server/internal/pkg/pubsub"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream session lifecycle notifications from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Redis.Enabled {
				return errors.New("redis is disabled in config; lifecycle notifications are only published through redis")
			}
			rdb, err := database.NewRedis(&a.cfg.Redis)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer rdb.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s (ctrl-c to stop)\n", pubsub.ChannelReviewLifecycle)

			err = pubsub.NewSubscriber(rdb).Subscribe(cmd.Context(), func(msg *pubsub.LifecycleMessage) {
				fmt.Fprintln(out, formatLifecycle(msg))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func formatLifecycle(msg *pubsub.LifecycleMessage) string {
	line := fmt.Sprintf("%s  %-18s session=%s reviewer=%d image=%s",
		msg.At.UTC().Format(time.RFC3339), msg.Type, msg.SessionID, msg.ReviewerID, msg.ImageID)
	if msg.ViewingAttempt > 0 {
		line += fmt.Sprintf(" attempt=%d", msg.ViewingAttempt)
	}
	if msg.Label != "" {
		line += " label=" + msg.Label
	}
	return line
}
