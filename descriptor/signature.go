package descriptor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

var selectorKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{8}$`)

// paramModifiers are the solidity keywords that can trail a parameter type
// and must be stripped when canonicalizing a signature.
var paramModifiers = map[string]bool{
	"memory":   true,
	"calldata": true,
	"storage":  true,
	"indexed":  true,
	"payable":  true,
}

// SelectorFromFormatKey resolves one display.formats key to a selector. Keys
// are either a literal 0x-prefixed 4 byte selector or a function signature,
// possibly with parameter names.
func SelectorFromFormatKey(key string) ([4]byte, error) {
	var sel [4]byte
	if selectorKeyPattern.MatchString(key) {
		for i := 0; i < 4; i++ {
			var b byte
			if _, err := fmt.Sscanf(key[2+2*i:4+2*i], "%02x", &b); err != nil {
				return sel, err
			}
			sel[i] = b
		}
		return sel, nil
	}
	return SelectorFromSignature(key)
}

// SelectorFromSignature canonicalizes a signature and hashes it down to the
// 4 byte selector.
func SelectorFromSignature(sig string) ([4]byte, error) {
	var sel [4]byte
	canonical, err := NormalizeSignature(sig)
	if err != nil {
		return sel, err
	}
	copy(sel[:], crypto.Keccak256([]byte(canonical))[:4])
	return sel, nil
}

// NormalizeSignature turns a human-written signature such as
// "transfer(address to, uint256 amount)" into its canonical form
// "transfer(address,uint256)". Parameter names and data-location modifiers
// are dropped, nested tuples are handled recursively, and shorthand integer
// types are expanded.
func NormalizeSignature(sig string) (string, error) {
	sig = strings.TrimSpace(sig)
	open := strings.Index(sig, "(")
	if open < 0 || !strings.HasSuffix(sig, ")") {
		return "", fmt.Errorf("%q is not a function signature", sig)
	}
	name := strings.TrimSpace(sig[:open])
	if name == "" {
		return "", fmt.Errorf("%q has no function name", sig)
	}
	params, err := normalizeParamList(sig[open+1 : len(sig)-1])
	if err != nil {
		return "", fmt.Errorf("signature %q: %w", sig, err)
	}
	return name + "(" + params + ")", nil
}

func normalizeParamList(list string) (string, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return "", nil
	}
	parts, err := splitTopLevel(list)
	if err != nil {
		return "", err
	}
	normalized := make([]string, len(parts))
	for i, p := range parts {
		n, err := normalizeParam(p)
		if err != nil {
			return "", err
		}
		normalized[i] = n
	}
	return strings.Join(normalized, ","), nil
}

// splitTopLevel splits a parameter list on commas outside of parentheses.
func splitTopLevel(s string) ([]string, error) {
	parts := []string{}
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	parts = append(parts, s[start:])
	return parts, nil
}

func normalizeParam(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("empty parameter")
	}

	if strings.HasPrefix(p, "(") {
		end := matchingParen(p)
		if end < 0 {
			return "", fmt.Errorf("unbalanced parentheses in %q", p)
		}
		inner, err := normalizeParamList(p[1:end])
		if err != nil {
			return "", err
		}
		return "(" + inner + ")" + arraySuffix(p[end+1:]), nil
	}

	// plain type: first whitespace token, minus any modifier that snuck in
	tokens := strings.Fields(p)
	typ := tokens[0]
	if paramModifiers[typ] {
		return "", fmt.Errorf("parameter %q starts with a modifier", p)
	}
	return expandShorthand(typ), nil
}

func matchingParen(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// arraySuffix extracts the leading [..] groups that follow a tuple's closing
// paren, ignoring the parameter name and modifiers after them.
func arraySuffix(rest string) string {
	rest = strings.TrimSpace(rest)
	suffix := ""
	for strings.HasPrefix(rest, "[") {
		close := strings.Index(rest, "]")
		if close < 0 {
			break
		}
		suffix += rest[:close+1]
		rest = strings.TrimSpace(rest[close+1:])
	}
	return suffix
}

// expandShorthand maps solidity shorthand integer types to their canonical
// abi names, preserving any array suffix.
func expandShorthand(typ string) string {
	base := typ
	suffix := ""
	if i := strings.Index(typ, "["); i >= 0 {
		base, suffix = typ[:i], typ[i:]
	}
	switch base {
	case "uint":
		base = "uint256"
	case "int":
		base = "int256"
	}
	return base + suffix
}
