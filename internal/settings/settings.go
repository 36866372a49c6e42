// Package settings reads the gateway's secrets and per-chain endpoints
// directly from the environment, matching the original Python service's
// app/config/maker.py (plain env reads, no framework). The static
// chain/token inventory is not read from a file at all: internal/registry
// builds it from Go literals.
package settings

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Settings holds the secrets and feed credentials that must never live in a
// checked-in config file.
type Settings struct {
	MakerSessionID   string
	MakerSessionAuth uuid.UUID
	SignerPrivateKey string
	LogLevel         string
}

// Load reads MAKER_SESS_ID, MAKER_SESS_AUTH, SIGNER_PRIV_KEY, and LOG_LEVEL
// from the environment. LOG_LEVEL defaults to "INFO" when unset; every
// other field is required.
func Load() (*Settings, error) {
	sessID := strings.TrimSpace(os.Getenv("MAKER_SESS_ID"))
	if sessID == "" {
		return nil, fmt.Errorf("MAKER_SESS_ID is required")
	}

	sessAuthRaw := os.Getenv("MAKER_SESS_AUTH")
	sessAuth, err := uuid.Parse(sessAuthRaw)
	if err != nil {
		return nil, fmt.Errorf("MAKER_SESS_AUTH must be a UUID: %w", err)
	}

	privKey := strings.TrimSpace(os.Getenv("SIGNER_PRIV_KEY"))
	if privKey == "" {
		return nil, fmt.Errorf("SIGNER_PRIV_KEY is required")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	return &Settings{
		MakerSessionID:   sessID,
		MakerSessionAuth: sessAuth,
		SignerPrivateKey: privKey,
		LogLevel:         logLevel,
	}, nil
}

// ChainWSURL reads the <SHORTNAME>_WS_URL environment variable for a chain
// short name, e.g. "arbitrum" → ARBITRUM_WS_URL.
func ChainWSURL(shortName string) string {
	key := strings.ToUpper(shortName) + "_WS_URL"
	return os.Getenv(key)
}

// ChainSettlementAddr reads <SHORTNAME>_SETTLEMENT_ADDR, the settlement
// contract the Signer signs quote levels against for that chain.
func ChainSettlementAddr(shortName string) string {
	key := strings.ToUpper(shortName) + "_SETTLEMENT_ADDR"
	return os.Getenv(key)
}

// ChainSkeeperAddr reads <SHORTNAME>_SKEEPER_ADDR, the address used as both
// recipient and EIP-1271 verifier when the Signer builds a signable order.
func ChainSkeeperAddr(shortName string) string {
	key := strings.ToUpper(shortName) + "_SKEEPER_ADDR"
	return os.Getenv(key)
}
