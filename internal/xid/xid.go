package xid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Derive returns a name-based v5 UUID, stable for the same parts.
func Derive(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(parts, "\x1f"))).String()
}

// New returns a random v4 UUID. A non-empty prefix is prepended with a dash.
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "-" + id.String()
}
