package main

import (
	"errors"
	"fmt"

	"github.com/sitepages/internal/db"
	"github.com/sitepages/internal/seed"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Init(appConfig.DatabasePath); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ 数据库已迁移: %s\n", appConfig.DatabasePath)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill an empty database with a demo site",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if err := openDatabase(); err != nil {
			return err
		}
		result, err := seed.Run(db.DB, log)
		if errors.Is(err, seed.ErrAlreadySeeded) {
			fmt.Fprintln(cmd.OutOrStdout(), "页面树已存在，跳过演示数据生成")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ 已生成 %d 个页面，根页面 ID %d\n", result.Pages, result.RootID)
		return nil
	},
}

var createUserCmd = &cobra.Command{
	Use:   "createuser <username> <password>",
	Short: "Create an admin user or reset its password",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Init(appConfig.DatabasePath); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		if err := db.SetUserPassword(db.DB, args[0], args[1]); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ 用户 %s 已保存\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, createUserCmd)
}
