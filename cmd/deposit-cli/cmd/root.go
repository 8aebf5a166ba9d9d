package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deposit-core/pkg/address"
	"deposit-core/pkg/config"
	"deposit-core/pkg/explorer"
	"deposit-core/pkg/localstore"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/styx"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "deposit-cli",
	Short: "sBTC 存款命令行工具",
	Long: `查询存款状态 / 手续费 / 池子流动性, 管理本地钱包会话,
以及订阅存款生命周期事件。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(cfg().App.Env, logger.WithLevel(cfg().App.LogLevel), logger.ToStderr())
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var (
	loaded     *config.Config
	flagNet    string
	flagOutput string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagNet, "network", "", "mainnet / testnet / regtest (默认读 app.network)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "text 或 json")
}

func cfg() config.Config {
	if loaded == nil {
		c, err := config.Load()
		if err != nil {
			fmt.Printf("加载配置失败: %v\n", err)
			os.Exit(1)
		}
		loaded = &c
	}
	return *loaded
}

func network() *address.Network {
	name := flagNet
	if name == "" {
		name = cfg().App.Network
	}
	n, err := address.NetworkByName(name)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return n
}

func styxClient() *styx.Client {
	c := cfg()
	return styx.NewClient(c.Styx.BaseURL, c.Styx.APIKey, c.Styx.Timeout)
}

func explorerClient() *explorer.Client {
	c, n := cfg(), network()
	bs, mp := n.BlockstreamURL, n.MempoolURL
	if c.Chain.BlockstreamURL != "" {
		bs = c.Chain.BlockstreamURL
	}
	if c.Chain.MempoolURL != "" {
		mp = c.Chain.MempoolURL
	}
	return explorer.NewClient(bs, mp, c.Chain.Timeout)
}

// localStore CLI 只支持 file / memory, redis 需要 server
func localStore() localstore.Store {
	c := cfg()
	if c.Wallet.LocalStore == "memory" {
		return localstore.NewMemoryStore()
	}
	return localstore.NewFileStore(c.Wallet.LocalStorePath)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
