package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// relayCmd 只运行 outbox 投递，和 serve 分开部署时使用
func relayCmd(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "把 outbox 中的事件投递到 Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Database.Driver == "memory" {
				return errors.New("relay 需要共享数据库，memory 存储不支持")
			}
			if !a.cfg.Kafka.Enabled {
				return errors.New("kafka.enabled 为 false")
			}
			if err := a.openStore(); err != nil {
				return err
			}
			if err := a.openProducer(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := a.relay()
			if once {
				n := r.RelayOnce(ctx)
				cmd.Printf("relayed %d messages\n", n)
				return nil
			}
			r.Start(ctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "只投递一批后退出")
	return cmd
}
