package transport

import (
	"encoding/hex"
	"math/big"
)

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}

func parseBigInt(s string) (*big.Int, bool) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return new(big.Int).SetBytes(b), true
}

func parseHexBytes(s string) ([]byte, bool) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}
