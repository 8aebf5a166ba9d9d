package address

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network 描述一个比特币网络下的地址前缀和公共 API
type Network struct {
	Name            string
	Params          *chaincfg.Params
	BitcoinPrefixes []string
	BlockstreamURL  string
	MempoolURL      string
	StacksNetwork   string
}

var (
	Mainnet = Network{
		Name:            "mainnet",
		Params:          &chaincfg.MainNetParams,
		BitcoinPrefixes: []string{"bc1", "3", "1"},
		BlockstreamURL:  "https://blockstream.info/api",
		MempoolURL:      "https://mempool.space/api",
		StacksNetwork:   "mainnet",
	}
	Testnet = Network{
		Name:            "testnet",
		Params:          &chaincfg.TestNet3Params,
		BitcoinPrefixes: []string{"tb1", "2"},
		BlockstreamURL:  "https://blockstream.info/testnet/api",
		MempoolURL:      "https://mempool.space/testnet/api",
		StacksNetwork:   "testnet",
	}
	Regtest = Network{
		Name:            "regtest",
		Params:          &chaincfg.RegressionNetParams,
		BitcoinPrefixes: []string{"bcrt1", "2", "m", "n"},
		BlockstreamURL:  "https://mempool.bitcoin.regtest.hiro.so/api/v1",
		MempoolURL:      "https://mempool.bitcoin.regtest.hiro.so/api/v1",
		StacksNetwork:   "regtest",
	}
)

// StacksMainnetPrefixes 按扫描顺序
var StacksMainnetPrefixes = []string{"SP", "SM"}

// NetworkByName returns the network for app.network.
func NetworkByName(name string) (*Network, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mainnet":
		n := Mainnet
		return &n, nil
	case "testnet":
		n := Testnet
		return &n, nil
	case "regtest":
		n := Regtest
		return &n, nil
	}
	return nil, fmt.Errorf("unknown network %q", name)
}

// IsBitcoinAddress reports whether addr starts with one of the network's prefixes.
func (n *Network) IsBitcoinAddress(addr string) bool {
	for _, p := range n.BitcoinPrefixes {
		if strings.HasPrefix(addr, p) {
			return true
		}
	}
	return false
}
