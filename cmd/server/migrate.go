package main

import (
	"errors"

	"storefront/internal/infrastructure/database"

	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新数据库表结构",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Database.Driver == "memory" {
				return errors.New("memory 存储不需要迁移")
			}
			if err := a.openStore(); err != nil {
				return err
			}
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			a.log.Info("migration finished")
			return nil
		},
	}
}
