package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"deposit-core/internal/model"
	"deposit-core/internal/service/balance"
	"deposit-core/internal/service/session"
	"deposit-core/pkg/stacksapi"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "显示本地钱包会话",
	Run: func(cmd *cobra.Command, args []string) {
		withBalances, _ := cmd.Flags().GetBool("balances")

		ctx := context.Background()
		tracker := session.NewTracker(localStore(), network())
		tracker.Poll(ctx)
		s := tracker.Current()

		var b *model.Balances
		if withBalances && s.SignedIn {
			c := cfg()
			stacks := stacksapi.NewClient(c.Stacks.APIURL, c.Stacks.APIKey, c.Chain.Timeout)
			f := balance.NewFetcher(tracker, stacks, explorerClient(), c.Stacks.SBTCAssetKey)
			f.Refresh(ctx)
			snap := f.Snapshot()
			b = &snap
		}

		if flagOutput == "json" {
			printJSON(map[string]interface{}{"session": s, "balances": b})
			return
		}
		if !s.SignedIn {
			fmt.Println("未连接钱包")
			return
		}
		fmt.Printf("Provider  %s\n", s.ActiveProvider)
		fmt.Printf("Stacks    %s\n", orNA(s.StacksAddress))
		fmt.Printf("Bitcoin   %s\n", orNA(s.BitcoinAddress))
		if b != nil {
			fmt.Printf("STX       %s\n", decOrNA(b.STX))
			fmt.Printf("sBTC      %s\n", decOrNA(b.SBTC))
			fmt.Printf("BTC       %s\n", decOrNA(b.BTC))
		}
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "写入钱包地址列表 (JSON 文件)",
	Long:  `文件内容是钱包返回的地址数组, 例如 [{"address":"SP..."},{"address":"bc1q...","symbol":"BTC"}]`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		data, err := os.ReadFile(file)
		if err != nil {
			fail("读取文件失败: %v", err)
		}
		var entries []model.AddressEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			fail("解析文件失败: %v", err)
		}

		s, err := session.NewTracker(localStore(), network()).Connect(context.Background(), entries)
		if err != nil {
			fail("连接失败: %v", err)
		}
		fmt.Printf("✅ 已连接 %s (%s)\n", orNA(s.StacksAddress), s.ActiveProvider)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "清除本地钱包会话",
	Run: func(cmd *cobra.Command, args []string) {
		if err := session.NewTracker(localStore(), network()).Disconnect(context.Background()); err != nil {
			fail("断开失败: %v", err)
		}
		fmt.Println("✅ 已断开")
	},
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func decOrNA(d *decimal.Decimal) string {
	if d == nil {
		return "N/A"
	}
	return d.String()
}

func init() {
	rootCmd.AddCommand(sessionCmd, connectCmd, disconnectCmd)
	sessionCmd.Flags().Bool("balances", false, "同时查询余额")
	connectCmd.Flags().StringP("file", "f", "addresses.json", "地址列表文件")
}
