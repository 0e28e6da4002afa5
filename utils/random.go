package utils

import (
	"crypto/rand"
	"math/big"
)

const shortCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString draws length characters from charset using crypto/rand.
func RandomString(charset string, length int) (string, error) {
	max := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[n.Int64()]
	}
	return string(out), nil
}

// GenerateShortCode returns a human-typable ticket code such as PF-7QK2-M9XD.
func GenerateShortCode() (string, error) {
	body, err := RandomString(shortCodeCharset, 8)
	if err != nil {
		return "", err
	}
	return "PF-" + body[:4] + "-" + body[4:], nil
}
