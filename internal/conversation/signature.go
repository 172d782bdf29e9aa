package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// signatureSampleLen bounds how much text signatures are derived from.
	signatureSampleLen = 3000

	// maxSignatures caps the fingerprint sequence per conversation.
	maxSignatures = 10

	// snippetTokens is how many leading tokens of each side feed a signature.
	snippetTokens = 5

	// signatureHashLen is the hex length of one fingerprint.
	signatureHashLen = 16
)

// SignatureGenerator derives stable content fingerprints from a
// conversation's leading turn pairs. Identical input always yields an
// identical signature sequence; duplicate detection depends on it.
type SignatureGenerator struct {
	pairRe *regexp.Regexp
}

// NewSignatureGenerator builds a generator recognizing the given assistant
// names.
func NewSignatureGenerator(assistantNames []string) *SignatureGenerator {
	if len(assistantNames) == 0 {
		assistantNames = DefaultSplitterOptions().AssistantNames
	}
	// Single-line matching: a pair is a user line followed by an assistant
	// line. Multi-line bodies only contribute their first line, which keeps
	// signatures cheap and stable.
	return &SignatureGenerator{
		pairRe: regexp.MustCompile(`User:[ \t]*(.+)\n(?:` + namesAlternation(assistantNames) + `):[ \t]*(.+)`),
	}
}

// Generate returns an ordered sequence of at most 10 fingerprints from the
// first 3000 characters of the text; fewer if fewer pairs exist, zero if the
// text contains no well-formed pairs.
func (g *SignatureGenerator) Generate(text string) []string {
	sample := headRunes(text, signatureSampleLen)
	pairs := g.pairRe.FindAllStringSubmatch(sample, -1)
	// Only the first 10 pairs are considered; a pair with a blank side is
	// dropped rather than replaced by a later one.
	if len(pairs) > maxSignatures {
		pairs = pairs[:maxSignatures]
	}

	signatures := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		userSnippet := leadingTokens(pair[1], snippetTokens)
		assistantSnippet := leadingTokens(pair[2], snippetTokens)
		if userSnippet == "" || assistantSnippet == "" {
			continue
		}
		signatures = append(signatures, hashSignature(userSnippet+"|"+assistantSnippet))
	}
	return signatures
}

// leadingTokens joins the first n whitespace-delimited tokens of s.
func leadingTokens(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

func hashSignature(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:signatureHashLen]
}
