package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deposit-core/internal/service/fee"
	"deposit-core/pkg/amount"
)

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "三档手续费 (148 vB 估算)",
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			source = cfg().Fees.Source
		}
		var src fee.Source = fee.StyxSource{Client: styxClient()}
		if source == "mempool" {
			src = fee.MempoolSource{Client: explorerClient()}
		}

		est, fallback := fee.NewService(src, nil, 0).Estimates(context.Background())
		if flagOutput == "json" {
			printJSON(map[string]interface{}{"estimates": est, "fallback": fallback})
			return
		}
		if fallback {
			fmt.Printf("⚠️  %s 不可用, 使用默认费率\n", src.Name())
		}
		for _, t := range []struct {
			name string
			rate int64
			fee  int64
			time string
		}{
			{"low", est.Low.Rate, est.Low.Fee, est.Low.Time},
			{"medium", est.Medium.Rate, est.Medium.Fee, est.Medium.Time},
			{"high", est.High.Rate, est.High.Fee, est.High.Time},
		} {
			fmt.Printf("%-7s %4d sat/vB  %6d sats  %s\n", t.name, t.rate, t.fee, t.time)
		}
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "池子流动性",
	Run: func(cmd *cobra.Command, args []string) {
		st, err := styxClient().GetPoolStatus(context.Background(), cfg().Styx.PoolID)
		if err != nil {
			fail("查询失败: %v", err)
		}
		if flagOutput == "json" {
			printJSON(st)
			return
		}
		fmt.Printf("Available  %s BTC\n", amount.FormatSats(st.EstimatedAvailable))
		fmt.Printf("Pending    %s BTC\n", amount.FormatSats(st.TotalPending))
		fmt.Printf("Utilized   %.2f%%\n", st.UtilizationRate*100)
	},
}

func init() {
	rootCmd.AddCommand(feesCmd, poolCmd)
	feesCmd.Flags().String("source", "", "styx 或 mempool (默认读 fees.source)")
}
