package model

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// NewLocalID creates a locally-unique entity identifier:
// <prefix>_<unix-nano>_<hex(blake3(uuid())[:6])>.
// Collisions are not defended against; a colliding entity would overwrite
// its twin.
func NewLocalID(prefix string) string {
	u := uuid.New()
	hash := blake3.Sum256(u[:])
	return prefix + "_" + strconv.FormatInt(time.Now().UnixNano(), 10) + "_" + hex.EncodeToString(hash[:6])
}

// IsLocalID reports whether id was generated by NewLocalID with the given
// prefix. Canonical identifiers assigned by the remote system do not match.
func IsLocalID(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return false
	}
	nanos, suffix, ok := strings.Cut(rest, "_")
	if !ok || len(suffix) != 12 {
		return false
	}
	if _, err := strconv.ParseInt(nanos, 10, 64); err != nil {
		return false
	}
	if _, err := hex.DecodeString(suffix); err != nil {
		return false
	}
	return true
}
