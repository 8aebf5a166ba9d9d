package crypto_util

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// psbtDomain 加在内容前面, 同样的字节换个用途 digest 就不同
const psbtDomain = "sbtc-deposit/psbt/v1"

// PSBTDigest 序列化后 PSBT 的 blake3 指纹, 写入 attempt journal, 不上链.
// 签名前后各算一次, 能看出钱包有没有改动交易.
func PSBTDigest(serialized []byte) string {
	if len(serialized) == 0 {
		return ""
	}
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(psbtDomain))
	_, _ = h.Write(serialized)
	return hex.EncodeToString(h.Sum(nil))
}

// ShortDigest 日志里用前 12 位
func ShortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
