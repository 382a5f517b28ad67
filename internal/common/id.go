package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewJobID generates a short opaque job identifier.
// The first UUID segment is enough entropy for a per-process job space
// and keeps stream URLs readable.
func NewJobID() string {
	return uuid.New().String()[:8]
}

// NewLeadID generates a unique lead record ID with the "lead_" prefix
func NewLeadID() string {
	return "lead_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
