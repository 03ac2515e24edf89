package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"larkticket/api"
	"larkticket/internal/infra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "选主后初始化表结构并退出",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer l.Sync()

			db, err := infra.InitDatabase(&cfg.Database, l)
			if err != nil {
				return fmt.Errorf("初始化数据库失败: %w", err)
			}
			defer infra.CloseDatabase(db)

			container, err := api.InitContainer(cmd.Context(), db, cfg, l)
			if err != nil {
				return err
			}
			defer container.Close(context.Background())

			return container.Migrate(cmd.Context())
		},
	}
}
