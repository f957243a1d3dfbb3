// Package devseed loads development seed files for the local cache.
//
// A seed file maps cache keys to the collection stored under them:
//
//	collections:
//	  canteen_tenants:
//	    - id: 1
//	      name: Ana
//	      business_name: Ana's Stall
//
// Files ending in .json use the same shape encoded as JSON.
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CacheSeedEntry is one cache key and its JSON-encoded collection.
type CacheSeedEntry struct {
	Key   string
	Value json.RawMessage
}

type seedFile struct {
	Collections map[string]any `yaml:"collections" json:"collections"`
}

// LoadCacheSeed reads path and returns its entries sorted by key.
func LoadCacheSeed(path string) ([]CacheSeedEntry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return ParseCacheSeed(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseCacheSeed decodes seed content. YAML is a superset of JSON, so isJSON
// only selects the stricter decoder.
func ParseCacheSeed(data []byte, isJSON bool) ([]CacheSeedEntry, error) {
	var file seedFile
	if isJSON {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("devseed: decode json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("devseed: decode yaml: %w", err)
		}
	}

	keys := make([]string, 0, len(file.Collections))
	for key := range file.Collections {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]CacheSeedEntry, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("devseed: collection key is empty")
		}
		value := file.Collections[key]
		if _, ok := value.([]any); !ok && value != nil {
			return nil, fmt.Errorf("devseed: collection %q must be a list", key)
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("devseed: encode collection %q: %w", key, err)
		}
		entries = append(entries, CacheSeedEntry{Key: key, Value: raw})
	}
	return entries, nil
}
