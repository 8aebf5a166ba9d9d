package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deposit-core/internal/event"
	"deposit-core/internal/model"
	"deposit-core/internal/service/mq"
	"deposit-core/pkg/amount"
	"deposit-core/pkg/database"
	"deposit-core/pkg/logger"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅存款生命周期事件",
	Long:  `从 Redis Streams 或 Kafka (redis.mq_type) 读取 deposit_events, Ctrl+C 退出。`,
	Run: func(cmd *cobra.Command, args []string) {
		group, _ := cmd.Flags().GetString("group")
		c := cfg()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var consumer mq.Consumer
		if c.Redis.MQType == "kafka" {
			consumer = mq.NewKafkaConsumer(c.Kafka.Brokers, group)
		} else {
			rdb, err := database.ConnectRedis(c.Redis)
			if err != nil {
				fail("连接 Redis 失败: %v", err)
			}
			defer rdb.Close()
			host, _ := os.Hostname()
			consumer = mq.NewRedisConsumer(rdb, group, host)
		}
		defer consumer.Close()

		if err := consumer.Subscribe(ctx, c.Deposit.EventTopic, printEvent); err != nil {
			fail("订阅失败: %v", err)
		}
		// Kafka 的 Subscribe 不阻塞
		<-ctx.Done()
	},
}

func printEvent(msg *mq.Message) error {
	var evt event.DepositLifecycleEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		logger.Warn("skip malformed event", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}
	if flagOutput == "json" {
		printJSON(evt)
		return nil
	}

	at := time.UnixMilli(evt.OccurredAt).Local().Format("15:04:05")
	switch evt.Type {
	case event.TypeDepositBroadcast:
		note := ""
		if !evt.RecordUpdated {
			note = " (record not updated, reconciling)"
		}
		fmt.Printf("%s ✅ %s %s BTC from %s tx %s%s\n", at, evt.StacksAddress, amount.FormatSats(evt.AmountSats),
			evt.Provider, model.TruncateTxID(evt.TxID), note)
	default:
		fmt.Printf("%s ❌ %s %s BTC: %s\n", at, evt.StacksAddress, amount.FormatSats(evt.AmountSats), evt.Error)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().String("group", "deposit-cli", "消费者组")
}
