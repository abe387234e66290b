package verification

import (
	"regexp"
	"strings"
)

// TokenSuffix encodes the outcome in a verification token.
type TokenSuffix string

const (
	SuffixApproved TokenSuffix = "OK"
	SuffixRejected TokenSuffix = "REJ"
	SuffixPending  TokenSuffix = "PRE"
)

const (
	partnerPrefix = "XK"
	directPrefix  = "DI"
	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	tokenRandLen  = 4
)

// TokenPattern matches every token GenerateToken can produce.
var TokenPattern = regexp.MustCompile(`^VER-(XK|DI)-[A-Z0-9]{4}-(OK|REJ|PRE)$`)

// SuffixFor picks the token suffix for a verdict. In review-queue mode every
// token is issued as pending.
func SuffixFor(verdict Verdict, reviewQueue bool) TokenSuffix {
	switch {
	case reviewQueue:
		return SuffixPending
	case verdict == VerdictApproved:
		return SuffixApproved
	default:
		return SuffixRejected
	}
}

// GenerateToken builds VER-{XK|DI}-{4 base-36 chars}-{suffix}.
func GenerateToken(rng Rand, fromPartner bool, suffix TokenSuffix) string {
	prefix := directPrefix
	if fromPartner {
		prefix = partnerPrefix
	}

	var b strings.Builder
	b.WriteString("VER-")
	b.WriteString(prefix)
	b.WriteByte('-')
	for i := 0; i < tokenRandLen; i++ {
		b.WriteByte(tokenAlphabet[rng.IntN(len(tokenAlphabet))])
	}
	b.WriteByte('-')
	b.WriteString(string(suffix))
	return b.String()
}
