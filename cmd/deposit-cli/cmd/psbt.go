package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/spf13/cobra"

	"deposit-core/pkg/amount"
	"deposit-core/pkg/crypto_util"
	"deposit-core/pkg/psbtutil"
)

var psbtCmd = &cobra.Command{
	Use:   "psbt [hex|base64]",
	Short: "解析 PSBT, 显示输入输出",
	Long:  `用于排查后端返回的 PSBT 或钱包签名结果。参数为 "-" 时从 stdin 读取。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw := args[0]
		if raw == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fail("读取 stdin 失败: %v", err)
			}
			raw = string(data)
		}
		raw = strings.TrimSpace(raw)

		p, err := psbtutil.DecodeHex(raw)
		if err != nil {
			if p, err = psbtutil.DecodeBase64(raw); err != nil {
				fail("无法解析 PSBT: %v", err)
			}
		}
		printPacket(p)
	},
}

func printPacket(p *psbt.Packet) {
	params := network().Params
	tx := p.UnsignedTx

	fmt.Printf("Unsigned txid  %s\n", tx.TxHash())
	if ser, err := psbtutil.Serialize(p); err == nil {
		fmt.Printf("Digest         %s\n", crypto_util.PSBTDigest(ser))
	}
	fmt.Printf("Inputs (%d)\n", len(tx.TxIn))
	for i, in := range tx.TxIn {
		line := fmt.Sprintf("  #%d %s", i, in.PreviousOutPoint)
		if i < len(p.Inputs) {
			pin := p.Inputs[i]
			if pin.WitnessUtxo != nil {
				line += "  " + amount.FormatSats(pin.WitnessUtxo.Value) + " BTC"
			}
			if len(pin.PartialSigs) > 0 || pin.FinalScriptWitness != nil {
				line += "  signed"
			}
		}
		fmt.Println(line)
	}
	fmt.Printf("Outputs (%d)\n", len(tx.TxOut))
	for i, out := range tx.TxOut {
		desc := "unknown script"
		class, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, params)
		switch {
		case err == nil && class == txscript.NullDataTy:
			desc = fmt.Sprintf("OP_RETURN %x", out.PkScript)
		case err == nil && len(addrs) > 0:
			desc = addrs[0].EncodeAddress()
		}
		fmt.Printf("  #%d %s BTC  %s\n", i, amount.FormatSats(out.Value), desc)
	}
}

func init() {
	rootCmd.AddCommand(psbtCmd)
}
