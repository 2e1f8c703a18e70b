package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/database"
	"github.com/qs3c/slide_review_server/internal/manifest"
)

// app 子命令共享的配置与连接
type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "reviewctl",
		Short: "Operator tooling for the slide review recorder",
		Long: `reviewctl manages the slide review datastore and checks recorded sessions.

It runs schema migrations, verifies that stored clicks line up with the
slide lattice, validates session event sequences, and inspects manifests.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 本地开发时从 .env 读取覆盖项，文件不存在时忽略
			_ = godotenv.Load()

			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", a.configPath, err)
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", envOr("CONFIG_PATH", "config.yaml"), "Path to config file")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newMigrateCmd(a),
		newVerifyCmd(a),
		newManifestCmd(a),
		newTokenCmd(a),
		newWatchCmd(a),
	)

	return cmd
}

func (a *app) openDB() (*gorm.DB, error) {
	db, err := database.Open(&a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func (a *app) manifests() (manifest.Provider, error) {
	return manifest.NewProvider(&a.cfg.Manifest)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
