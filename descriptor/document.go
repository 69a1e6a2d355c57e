// Package descriptor loads clear-signing display descriptors and binds their
// per-function formats to contract ABI methods.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is one display descriptor file. A document may include another
// file; the including document's values win on conflict.
type Document struct {
	Includes string    `json:"includes,omitempty"`
	Context  *Context  `json:"context,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Display  *Display  `json:"display,omitempty"`
}

type Context struct {
	Contract *ContractContext `json:"contract,omitempty"`
}

// ContractContext binds the descriptor to one or more deployments of the
// same contract. ABI is either an embedded abi array or a URL string.
type ContractContext struct {
	ABI         json.RawMessage `json:"abi,omitempty"`
	Deployments []Deployment    `json:"deployments,omitempty"`
}

type Deployment struct {
	ChainID uint64 `json:"chainId"`
	Address string `json:"address"`
}

// EmbeddedABI returns the inline abi json if the descriptor carries one.
func (c *ContractContext) EmbeddedABI() (string, bool) {
	if len(c.ABI) == 0 {
		return "", false
	}
	trimmed := strings.TrimSpace(string(c.ABI))
	if strings.HasPrefix(trimmed, "[") {
		return trimmed, true
	}
	return "", false
}

// ABIURL returns the abi location if the descriptor points at one instead of
// embedding it.
func (c *ContractContext) ABIURL() (string, bool) {
	if len(c.ABI) == 0 {
		return "", false
	}
	var u string
	if err := json.Unmarshal(c.ABI, &u); err != nil {
		return "", false
	}
	return u, u != ""
}

type Metadata struct {
	Owner string     `json:"owner,omitempty"`
	Token *TokenInfo `json:"token,omitempty"`
}

type TokenInfo struct {
	Address  string `json:"address,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
}

type Display struct {
	// Formats maps a function signature or 0x-prefixed selector to its
	// display format.
	Formats map[string]*FunctionFormat `json:"formats"`
}

type FunctionFormat struct {
	Intent   string         `json:"intent,omitempty"`
	Fields   []DisplayField `json:"fields"`
	Required []string       `json:"required,omitempty"`
	Excluded []string       `json:"excluded,omitempty"`
}

type DisplayField struct {
	Path   string                 `json:"path"`
	Label  string                 `json:"label"`
	Format string                 `json:"format,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Load reads a descriptor file and resolves its include chain. Included
// paths are relative to the file that names them.
func Load(path string) (*Document, error) {
	merged, err := loadMerged(path, map[string]bool{})
	if err != nil {
		return nil, err
	}
	delete(merged, "includes")

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	if err = json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("malformed descriptor %s: %w", path, err)
	}
	return doc, nil
}

func loadMerged(path string, visited map[string]bool) (map[string]interface{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if visited[abs] {
		return nil, fmt.Errorf("descriptor include cycle through %s", abs)
	}
	visited[abs] = true

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("couldn't read descriptor %s: %w", abs, err)
	}
	doc := map[string]interface{}{}
	if err = json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("descriptor %s is not valid json: %w", abs, err)
	}

	includes, _ := doc["includes"].(string)
	if includes == "" {
		return doc, nil
	}

	base, err := loadMerged(filepath.Join(filepath.Dir(abs), includes), visited)
	if err != nil {
		return nil, err
	}
	return mergeMaps(base, doc), nil
}

// mergeMaps deep-merges overlay onto base. Maps merge recursively, every
// other value in overlay replaces the base value outright.
func mergeMaps(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range overlay {
		if bm, ok := out[k].(map[string]interface{}); ok {
			if om, ok := ov.(map[string]interface{}); ok {
				out[k] = mergeMaps(bm, om)
				continue
			}
		}
		out[k] = ov
	}
	return out
}
