package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ticketAlphabet omits 0/O and 1/I/L so codes survive being read aloud at a badge desk.
const ticketAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const ticketLength = 8

// NewTicketCode returns "<prefix>-XXXXXXXX" drawn from crypto/rand.
func NewTicketCode(prefix string) (string, error) {
	b := make([]byte, ticketLength)
	max := big.NewInt(int64(len(ticketAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate ticket code: %w", err)
		}
		b[i] = ticketAlphabet[n.Int64()]
	}
	return prefix + "-" + string(b), nil
}

// NewNumericCode returns a uniformly random code in [100000, 999999].
func NewNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
