package session

import (
	"strings"

	"deposit-core/internal/model"
	"deposit-core/pkg/address"
)

// stacksFallbackIndex 没有前缀命中时按位置取, 来自 Leather 固定的地址顺序
const stacksFallbackIndex = 2

// Classify maps the shape of the address list to a provider.
// (1, *) -> asigna, (2..3, true) -> xverse, anything else -> leather.
func Classify(addressCount int, hasBitcoin bool) model.WalletProvider {
	switch {
	case addressCount <= 0:
		return model.ProviderNone
	case addressCount == 1:
		return model.ProviderAsigna
	case addressCount <= 3 && hasBitcoin:
		return model.ProviderXverse
	default:
		return model.ProviderLeather
	}
}

// ResolveStacksAddress scans prefixes in order and returns the first entry matching the
// first prefix that matches anything.
func ResolveStacksAddress(entries []model.AddressEntry, prefixes []string) string {
	for _, p := range prefixes {
		for _, e := range entries {
			if strings.HasPrefix(e.Address, p) {
				return e.Address
			}
		}
	}
	if len(entries) > stacksFallbackIndex {
		return entries[stacksFallbackIndex].Address
	}
	return ""
}

// ResolveBitcoinAddress returns the first entry, in list order, carrying a prefix of net.
func ResolveBitcoinAddress(entries []model.AddressEntry, net *address.Network) string {
	for _, e := range entries {
		if net.IsBitcoinAddress(e.Address) {
			return e.Address
		}
	}
	return ""
}

// Derive builds a session from the persisted address list.
func Derive(entries []model.AddressEntry, net *address.Network) model.WalletSession {
	if len(entries) == 0 {
		return model.SignedOut()
	}

	btc := ResolveBitcoinAddress(entries, net)
	return model.WalletSession{
		SignedIn:       true,
		StacksAddress:  ResolveStacksAddress(entries, address.StacksMainnetPrefixes),
		BitcoinAddress: btc,
		ActiveProvider: Classify(len(entries), btc != ""),
	}
}
