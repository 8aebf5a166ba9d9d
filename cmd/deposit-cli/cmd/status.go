package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"deposit-core/internal/service/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查询存款状态",
	Long: `按存款 ID 或比特币 txid 查询一次, 不会自动轮询。
--interactive 时失败后可以按回车重试 (查不到的存款不能重试)。`,
	Run: func(cmd *cobra.Command, args []string) {
		id, _ := cmd.Flags().GetString("id")
		txid, _ := cmd.Flags().GetString("tx")
		interactive, _ := cmd.Flags().GetBool("interactive")

		tracker := status.NewTracker(styxClient(), txURL())
		ctx := context.Background()

		out := tracker.Track(ctx, status.Query{DepositID: id, TxID: txid})
		render(out)

		reader := bufio.NewReader(os.Stdin)
		for interactive && out.RetryAllowed && out.Kind == status.KindError {
			fmt.Print("按回车重试, 输入 q 退出: ")
			line, _ := reader.ReadString('\n')
			if strings.TrimSpace(line) == "q" {
				return
			}
			var err error
			out, err = tracker.Retry(ctx)
			if err != nil {
				fail("%v", err)
			}
			render(out)
		}
		if out.Kind != status.KindFound {
			os.Exit(1)
		}
	},
}

func txURL() string {
	switch network().Name {
	case "testnet":
		return "https://mempool.space/testnet/tx/"
	case "regtest":
		return ""
	}
	return "https://mempool.space/tx/"
}

func render(out status.Outcome) {
	if flagOutput == "json" {
		printJSON(out)
		return
	}
	switch out.Kind {
	case status.KindNotFound, status.KindError:
		fmt.Println(out.Message)
		return
	}
	d := out.Deposit
	fmt.Printf("Deposit   %s\n", d.ID)
	fmt.Printf("Status    %s (%s)\n", d.Status, d.StatusColor)
	fmt.Printf("BTC       %s\n", d.BTCAmount)
	if d.SBTCAmount != "" {
		fmt.Printf("sBTC      %s\n", d.SBTCAmount)
	}
	fmt.Printf("From      %s\n", d.BTCSender)
	fmt.Printf("To        %s\n", d.STXReceiver)
	fmt.Printf("Tx        %s\n", d.BTCTxIDShort)
	if d.TxURL != "" {
		fmt.Printf("          %s\n", d.TxURL)
	}
	fmt.Printf("Created   %s\n", d.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if d.UpdatedAt != nil {
		fmt.Printf("Updated   %s\n", d.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("id", "", "存款 ID")
	statusCmd.Flags().String("tx", "", "比特币交易 ID")
	statusCmd.Flags().BoolP("interactive", "i", false, "失败时提示重试")
	statusCmd.MarkFlagsOneRequired("id", "tx")
	statusCmd.MarkFlagsMutuallyExclusive("id", "tx")
}
