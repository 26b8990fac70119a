package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewReference returns a unique transaction reference such as "DEP-3F9A...".
func NewReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if prefix == "" {
		return id
	}
	return strings.ToUpper(prefix) + "-" + id
}
