package analysis

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewID creates a new cryptographically random analysis record ID.
func NewID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate random analysis ID")
	}
	return "analysis-" + hex.EncodeToString(b)
}

// NewImageID creates a new image blob ID. Images are addressed by UUID so
// caller-supplied IDs and generated ones share one namespace.
func NewImageID() string {
	return uuid.NewString()
}
