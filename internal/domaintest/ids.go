package domaintest

import (
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
)

// NewAccountID returns a random id in the upstream account.<32 hex> format
func NewAccountID(t *testing.T) string {
	t.Helper()
	id := uuid.New()
	return "account." + hex.EncodeToString(id[:])
}

