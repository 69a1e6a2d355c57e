package coverage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// RuleSet is the audit policy for one run. It is loaded once, before
// analysis starts, and never mutated afterwards.
type RuleSet struct {
	// WrappingAllowlist names function-name fragments for which an
	// undisclosed native amount is expected rather than suspicious,
	// e.g. weth-style deposit/withdraw wrappers.
	WrappingAllowlist []string `json:"wrappingAllowlist"`
}

func DefaultRuleSet() RuleSet {
	return RuleSet{
		WrappingAllowlist: []string{"deposit", "withdraw", "wrap", "unwrap"},
	}
}

// LoadRuleSet reads a rule file, filling anything it doesn't set from the
// defaults.
func LoadRuleSet(path string) (RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("couldn't read rule file %s: %w", path, err)
	}
	rules := RuleSet{}
	if err = json.Unmarshal(raw, &rules); err != nil {
		return RuleSet{}, fmt.Errorf("rule file %s is not valid json: %w", path, err)
	}
	if rules.WrappingAllowlist == nil {
		rules.WrappingAllowlist = DefaultRuleSet().WrappingAllowlist
	}
	return rules, nil
}

// AllowsNativeWrapping reports whether the function name marks a known
// wrapping pattern where native value flows without a dedicated field.
func (r RuleSet) AllowsNativeWrapping(functionName string) bool {
	name := strings.ToLower(functionName)
	for _, fragment := range r.WrappingAllowlist {
		if strings.Contains(name, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}
