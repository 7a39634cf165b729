// Package identity derives the opaque project alias and one-time auth token
// that stand in for a project's name in webhook traffic, and performs the
// structural check inbound webhook callers must pass.
package identity

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

const (
	// AliasPrefix starts every project alias.
	AliasPrefix = "proj_"
	// TokenPrefix starts every project auth token.
	TokenPrefix = "pauth_"

	refPrefix = "validated_project_"
	hashWidth = 8
	timeWidth = 6
)

// Alias is an opaque per-project identifier of the form proj_<hash8>_<time6>.
type Alias string

// AuthToken is an opaque time-seeded credential of the form pauth_<hash8>.
type AuthToken string

// ProjectRef is returned by ValidateToken for a well-formed alias/token pair.
// It carries only the hash segment of the alias and does not prove the token
// was ever issued for it.
type ProjectRef struct {
	Fragment string
}

// String returns the reference in its wire form, validated_project_<fragment>.
func (r ProjectRef) String() string {
	return refPrefix + r.Fragment
}

// Deriver computes aliases and tokens. The zero value reads the wall clock;
// set Now to pin time in tests. A Deriver holds no mutable state and is safe
// for concurrent use.
type Deriver struct {
	Now func() time.Time
}

func (d Deriver) millis() int64 {
	if d.Now != nil {
		return d.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

// DeriveAlias returns proj_<hash8>_<time6>, where hash8 digests
// name+owner+repo and time6 is the tail of the current Unix milliseconds in
// base 36. The hash part is stable for a given seed; the suffix is not.
func (d Deriver) DeriveAlias(name, owner, repo string) Alias {
	stamp := strconv.FormatInt(d.millis(), 36)
	if len(stamp) > timeWidth {
		stamp = stamp[len(stamp)-timeWidth:]
	}
	return Alias(AliasPrefix + Hash(name+owner+repo) + "_" + stamp)
}

// DeriveAuthToken returns pauth_<hash8> over name+owner+repo followed by the
// decimal Unix milliseconds. Two calls in different milliseconds yield
// different tokens, so the result cannot be re-derived later.
func (d Deriver) DeriveAuthToken(name, owner, repo string) AuthToken {
	seed := name + owner + repo + strconv.FormatInt(d.millis(), 10)
	return AuthToken(TokenPrefix + Hash(seed))
}

// ValidateToken accepts any alias starting with proj_ paired with any token
// starting with pauth_. It is a shape check only: there is no binding
// between the two values.
func ValidateToken(alias, token string) (ProjectRef, bool) {
	if !strings.HasPrefix(alias, AliasPrefix) || !strings.HasPrefix(token, TokenPrefix) {
		return ProjectRef{}, false
	}
	return ProjectRef{Fragment: strings.Split(alias, "_")[1]}, true
}

// Hash is the 32-bit rolling hash used for aliases and tokens:
// h = h*31 + c over UTF-16 code units with int32 wraparound, rendered as the
// absolute value in base 36 and zero-padded to 8 characters.
func Hash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return encodeHash(h)
}

func encodeHash(h int32) string {
	// Widen before negating so MinInt32 maps to 2^31.
	v := int64(h)
	if v < 0 {
		v = -v
	}
	out := strconv.FormatInt(v, 36)
	if len(out) < hashWidth {
		out = strings.Repeat("0", hashWidth-len(out)) + out
	}
	return out
}
