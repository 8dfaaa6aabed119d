// Package validation provides input validation for request parameters.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Provider names appear in URL paths and metric labels
var providerNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateProviderName validates a provider name
func ValidateProviderName(name string) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if !providerNameRegex.MatchString(name) {
		return errors.New("invalid provider name: must be lowercase alphanumeric with hyphens or underscores")
	}
	return nil
}

// ValidateAddress validates an Ethereum address. The 0x prefix is optional
// and any letter case is accepted.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("address cannot be empty")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: must be 40 hex characters, optionally 0x-prefixed")
	}
	return nil
}

// CanonicalAddress returns the EIP-55 checksummed form of addr
func CanonicalAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return common.HexToAddress(addr).Hex(), nil
}

// ValidateTxHash validates a 32-byte transaction hash
func ValidateTxHash(hash string) error {
	h := strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X")
	if len(h) != 64 {
		return errors.New("invalid transaction hash length: must be 64 hex characters")
	}
	if !isHex(h) {
		return errors.New("invalid transaction hash: contains non-hex characters")
	}
	return nil
}

// ValidateBytecode validates a hex-encoded bytecode string
func ValidateBytecode(code string) error {
	c := strings.TrimPrefix(strings.TrimPrefix(code, "0x"), "0X")
	if c == "" {
		return errors.New("bytecode cannot be empty")
	}
	if !isHex(c) {
		return errors.New("invalid bytecode: contains non-hex characters")
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
