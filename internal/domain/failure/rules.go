package failure

import (
	"fmt"
	"regexp"
	"strings"
)

// rule is one keyword bucket. Rules are evaluated in slice order; the first
// bucket with a matching keyword wins.
type rule struct {
	kind    Kind
	pattern *regexp.Regexp
}

// words matches any of the phrases as whole words, so "auth" does not hit
// "author" and "500" does not hit "1500px".
func words(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var (
	sizeWords = words(
		"file too large", "too large", "size limit", "payload too large", "413",
		"exceeds the size limit", "exceeds the maximum", "exceeds maximum", "exceeds the limit", "size exceeds",
	)
	formatWords = words("unsupported", "unknown format", "format")
)

// Validation and Auth come before the broader buckets so user-correctable
// failures never end up on the retry path.
var rules = []rule{
	{KindValidation, words(
		"validation", "invalid input", "invalid image", "invalid request", "malformed",
		"unsupported", "unknown format", "bad request", "is required", "missing field",
	)},
	{KindValidation, sizeWords},
	{KindAuth, words(
		"unauthorized", "unauthenticated", "forbidden", "401", "403", "credential", "credentials",
		"token", "jwt", "not logged in", "session expired", "permission denied", "auth", "authentication",
	)},
	{KindNetwork, words(
		"network", "timeout", "timed out", "failed to fetch", "fetch failed",
		"connection refused", "connection reset", "econnrefused", "econnreset",
		"no such host", "dial tcp", "broken pipe", "unexpected eof", "offline",
	)},
	{KindServer, words(
		"internal server error", "server error", "service unavailable", "bad gateway",
		"gateway timeout", "500", "502", "503", "504", "backpressure", "database", "backend",
	)},
	{KindModel, words(
		"model", "pipeline", "analysis failed", "analysis failure", "analysis error",
		"inference", "scoring failed", "face not detected", "no face",
	)},
}

func matchKind(msg string) Kind {
	for _, r := range rules {
		if r.pattern.MatchString(msg) {
			return r.kind
		}
	}
	return KindUnknown
}

// messageFor picks the user-facing message for a classified failure.
func messageFor(kind Kind, msg string) string {
	switch kind {
	case KindValidation:
		return validationHint(msg)
	case KindNetwork:
		return msgNetwork
	case KindAuth:
		return msgAuth
	case KindServer:
		return msgServer
	case KindModel:
		return msgModel
	default:
		return msgUnknown
	}
}

// validationHint rewrites a validation failure into a concrete remediation.
func validationHint(msg string) string {
	switch {
	case sizeWords.MatchString(msg):
		return fmt.Sprintf("The image is too large. Please upload a file under %d MB.", DefaultMaxUploadBytes>>20)
	case formatWords.MatchString(msg):
		return "Unsupported image format. Please upload a " + supportedFormats + " image."
	default:
		return msgValidation
	}
}
