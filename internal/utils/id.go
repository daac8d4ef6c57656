package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GENERATEID RETURNS A PREFIXED, DASH-FREE UUID SUITABLE FOR RUN IDS, ERROR
// IDS, AND LOG-ENTRY IDS.
func GenerateID(prefix string) string {
	id := uuid.New().String()
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(id, "-", ""))
}
