// Package syncid generates and validates the opaque tokens used to name a
// synchronization attempt and the application tags that scope one.
package syncid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// New generates a 32-character alphanumeric synchronization id. A UUIDv4
// is 36 characters with 4 hyphens at fixed positions; stripping them
// yields exactly 32 hex characters from a uniform random source, matching
// the wire format of an opaque sync-id token (spec §6).
func New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

var applicationCharset = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ErrInvalidApplication is returned by ValidateApplication when the tag
// does not match the allowed charset.
var ErrInvalidApplication = errors.New("invalid application tag")

// ValidateApplication rejects malformed application tags (spec §7,
// ValidationKind); config.Validate applies it to account.application
// before the connection is constructed. The tag is first normalized to NFC so
// that visually identical but differently-encoded Unicode sequences (e.g.
// a combining-mark variant of an ASCII-looking letter) are not accepted
// by surface-level regex matching and then silently diverge from what a
// log or database comparison sees.
func ValidateApplication(tag string) error {
	normalized := norm.NFC.String(tag)
	if normalized == "" || !applicationCharset.MatchString(normalized) {
		return fmt.Errorf("%w: %q (allowed charset [a-zA-Z0-9_]+)", ErrInvalidApplication, tag)
	}
	return nil
}

// ApplicationPattern returns the default waitSynchronized application
// pattern for an account's application tag (spec §4.5).
func ApplicationPattern(application string) string {
	if application == "CopyFactory" {
		return "CopyFactory.*|RPC"
	}
	return "RPC"
}
