// ABOUTME: Generated network names and passphrases
// ABOUTME: Uses crypto/rand so credentials are not guessable
package hotspot

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// SSIDPrefix starts every generated network name
const SSIDPrefix = "Speaker_"

// PassphraseLength is the length of generated passphrases
const PassphraseLength = 15

// passphraseAlphabet omits characters that are easy to misread
const passphraseAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateSSID returns SSIDPrefix followed by four random hex digits
func GenerateSSID() (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return SSIDPrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}

// GeneratePassphrase returns a random passphrase of n characters
func GeneratePassphrase(n int) (string, error) {
	max := big.NewInt(int64(len(passphraseAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passphraseAlphabet[idx.Int64()]
	}
	return string(out), nil
}
