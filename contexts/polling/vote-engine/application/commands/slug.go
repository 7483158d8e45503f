package commands

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/big"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// shareSlug derives a short public slug from the vote ID. The same vote and
// salt always produce the same slug.
func shareSlug(voteID string, salt string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(voteID))
	sum := mac.Sum(nil)
	return base62(sum[:9])
}

func base62(data []byte) string {
	value := new(big.Int).SetBytes(data)
	if value.Sign() == 0 {
		return "0"
	}
	base := big.NewInt(62)
	mod := new(big.Int)
	out := make([]byte, 0, 16)
	for value.Sign() > 0 {
		value.DivMod(value, base, mod)
		out = append(out, base62Alphabet[mod.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
