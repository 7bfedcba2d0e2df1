package grammar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "grammar.schema.json"

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "rules"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "rules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "pattern", "bond_type", "strength"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "pattern": {
            "type": "array",
            "minItems": 2,
            "items": {
              "type": "object",
              "properties": {
                "types": {"type": "array", "items": {"enum": ["keyword", "operator", "punctuation", "identifier", "literal", "unknown"]}},
                "values": {"type": "array", "items": {"type": "string"}}
              },
              "additionalProperties": false
            }
          },
          "bond_type": {"enum": ["COVALENT", "IONIC", "VAN_DER_WAALS"]},
          "strength": {"type": "number", "minimum": 0, "maximum": 1},
          "energy_cost": {"type": "integer", "minimum": 0}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var compiledSchema = jsonschema.MustCompileString(schemaURL, schemaJSON)

// File is the on-disk shape of a rule set.
type File struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

// Load reads and validates a grammar file.
func Load(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rs, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rs, nil
}

// Parse validates raw JSON against the grammar schema and builds a rule set.
func Parse(raw []byte) (*RuleSet, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(f.Rules))
	for _, r := range f.Rules {
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	rs := NewRuleSet(f.Name, f.Rules...)
	rs.Digest = sha256Hex(raw)
	return rs, nil
}

// Encode renders the rule set in the file format. The digest of the encoded
// bytes is stored on the rule set when it has none yet.
func Encode(rs *RuleSet) ([]byte, error) {
	b, err := json.MarshalIndent(File{Name: rs.Name, Rules: rs.Rules}, "", "  ")
	if err != nil {
		return nil, err
	}
	if rs.Digest == "" {
		rs.Digest = sha256Hex(b)
	}
	return b, nil
}

// LoadOrDefault falls back to the built-in rules when path does not exist.
func LoadOrDefault(path string) (*RuleSet, bool, error) {
	if strings.TrimSpace(path) == "" {
		rs := Default()
		_, _ = Encode(rs)
		return rs, true, nil
	}
	rs, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			rs = Default()
			_, _ = Encode(rs)
			return rs, true, nil
		}
		return nil, false, err
	}
	return rs, false, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
