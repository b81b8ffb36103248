package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyKeyExpr        = errors.New("empty key expression")
	ErrWildcardInKey       = errors.New("wildcards are not allowed in a publish key")
	ErrUnsupportedWildcard = errors.New("'**' is only supported as the last chunk")
)

// ValidateKeyExpr checks a slash separated key expression. A chunk is either
// "*", "**" or a literal without wildcards or reserved characters.
func ValidateKeyExpr(keyExpr string) error {
	if keyExpr == "" {
		return ErrEmptyKeyExpr
	}
	if strings.HasPrefix(keyExpr, "/") || strings.HasSuffix(keyExpr, "/") {
		return fmt.Errorf("key expression %q must not start or end with '/'", keyExpr)
	}

	prev := ""
	for _, chunk := range strings.Split(keyExpr, "/") {
		switch {
		case chunk == "":
			return fmt.Errorf("key expression %q contains an empty chunk", keyExpr)
		case chunk == "**" && prev == "**":
			return fmt.Errorf("key expression %q repeats '**'", keyExpr)
		case chunk == "*" || chunk == "**":
		case strings.Contains(chunk, "*"):
			return fmt.Errorf("key expression %q: chunk %q mixes '*' with literal text", keyExpr, chunk)
		case strings.ContainsAny(chunk, "#?$>"):
			return fmt.Errorf("key expression %q: chunk %q contains a reserved character", keyExpr, chunk)
		case strings.ContainsAny(chunk, " \t\r\n."):
			return fmt.Errorf("key expression %q: chunk %q contains whitespace or '.'", keyExpr, chunk)
		}
		prev = chunk
	}
	return nil
}

// ValidateKey is ValidateKeyExpr without wildcards, for publishing.
func ValidateKey(key string) error {
	if err := ValidateKeyExpr(key); err != nil {
		return err
	}
	if strings.Contains(key, "*") {
		return ErrWildcardInKey
	}
	return nil
}

// SplitSelector cuts "key?params" into its key expression and parameters.
func SplitSelector(selector string) (keyExpr, params string) {
	keyExpr, params, _ = strings.Cut(selector, "?")
	return keyExpr, params
}

// ToSubject maps a key expression onto a NATS subject. A trailing "**"
// becomes ">", which needs at least one more token, so "demo/**" does not
// reach the bare key "demo" on the bus.
func ToSubject(keyExpr string) (string, error) {
	if err := ValidateKeyExpr(keyExpr); err != nil {
		return "", err
	}
	chunks := strings.Split(keyExpr, "/")
	for i, chunk := range chunks {
		if chunk == "**" {
			if i != len(chunks)-1 {
				return "", fmt.Errorf("%q: %w", keyExpr, ErrUnsupportedWildcard)
			}
			chunks[i] = ">"
		}
	}
	return strings.Join(chunks, "."), nil
}

// FromSubject is the inverse of ToSubject for concrete subjects.
func FromSubject(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// Intersects reports whether some concrete key matches both expressions.
// Both sides may carry wildcards.
func Intersects(a, b string) bool {
	return intersectChunks(strings.Split(a, "/"), strings.Split(b, "/"))
}

func intersectChunks(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) > 0 && a[0] == "**":
		return intersectChunks(a[1:], b) || (len(b) > 0 && intersectChunks(a, b[1:]))
	case len(b) > 0 && b[0] == "**":
		return intersectChunks(a, b[1:]) || (len(a) > 0 && intersectChunks(a[1:], b))
	case len(a) == 0 || len(b) == 0:
		return false
	case a[0] == "*" || b[0] == "*" || a[0] == b[0]:
		return intersectChunks(a[1:], b[1:])
	}
	return false
}
