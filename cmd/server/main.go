package main

import (
	"fmt"
	"os"

	"github.com/sitepages/internal/config"
	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/logger"
	"github.com/spf13/cobra"
)

var (
	databasePath string
	appConfig    config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "sitepages",
	Short: "Block based page builder and content API",
	Long: `sitepages serves a tree of pages composed from typed content blocks,
with a session protected admin API and a cached public JSON API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databasePath, "database", "", "sqlite database path (overrides DATABASE_PATH)")
}

func initializeConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if databasePath != "" {
		cfg.DatabasePath = databasePath
	}
	appConfig = cfg
	return nil
}

func newLogger() (logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       appConfig.LogLevel,
		Development: appConfig.LogDevelopment,
	})
}

// openDatabase 初始化数据库并确保超级管理员账号存在。
func openDatabase() error {
	if err := db.Init(appConfig.DatabasePath); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := db.EnsureUser(db.DB, appConfig.SuperRootUserName, appConfig.SuperRootPassword); err != nil {
		return fmt.Errorf("ensure super user: %w", err)
	}
	return nil
}
