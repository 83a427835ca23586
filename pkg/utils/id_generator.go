package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// shortUUID returns the first 8 hex characters of a random UUID
func shortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// GenerateBatchID generates a batch ID of the form BATCH_{unixMillis}_{8 hex}
func GenerateBatchID(now time.Time) string {
	return fmt.Sprintf("BATCH_%d_%s", now.UnixMilli(), shortUUID())
}

// GenerateDocumentID generates a document ID of the form DOC_{unixMillis}_{8 hex}
func GenerateDocumentID(now time.Time) string {
	return fmt.Sprintf("DOC_%d_%s", now.UnixMilli(), shortUUID())
}

// GenerateShareToken returns 32 random bytes hex encoded
func GenerateShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
