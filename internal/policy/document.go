package policy

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the policy lives relative to the repository
// directory a hook runs in.
const DefaultPath = "hooks/users.json"

// ErrLoadFailed wraps every failure to read, parse or validate a policy.
var ErrLoadFailed = errors.New("policy load failed")

//go:embed schema.json
var schemaJSON []byte

// BranchRule grants a role on a branch name or a branch prefix ending in "*".
type BranchRule struct {
	Branch string `json:"Branch" yaml:"Branch"`
	Role   string `json:"Role" yaml:"Role"`
}

// UserAccess is the access list of one user.
type UserAccess struct {
	UserName   string       `json:"UserName" yaml:"UserName"`
	AccessList []BranchRule `json:"AccessList" yaml:"AccessList"`
}

// Document is the policy file. Order matters: the first entry for a user
// wins, and among wildcard rules the first match wins.
type Document struct {
	UsersInfo []UserAccess `json:"UsersInfo" yaml:"UsersInfo"`
}

// Format is the serialization of a policy file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks a format from the file extension. Anything that is not
// YAML is read as JSON with comments allowed.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and validates the policy at path. Unlike most config in this
// tool a missing file is an error: without a policy nothing is authorized.
func Load(path string) (*Document, error) {
	doc, _, err := LoadWithHash(path)
	return doc, err
}

// LoadWithHash loads the policy and returns the SHA-256 of its raw bytes.
func LoadWithHash(path string) (*Document, string, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	doc, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
	}

	return doc, HashBytes(data), nil
}

// HashBytes returns "sha256:<hex>" of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// Parse decodes a policy document and checks it against the schema.
func Parse(data []byte, format Format) (*Document, error) {
	var raw any
	var doc Document

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		// Round-trip through JSON so the validator sees JSON types.
		normalized, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("normalize yaml: %w", err)
		}
		raw = nil
		if err := json.Unmarshal(normalized, &raw); err != nil {
			return nil, fmt.Errorf("normalize yaml: %w", err)
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		stripped := jsonc.ToJSON(data)
		if err := json.Unmarshal(stripped, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		if err := json.Unmarshal(stripped, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	return &doc, nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func validateSchema(v any) error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("users.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add policy schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("users.schema.json")
	})
	if schemaErr != nil {
		return schemaErr
	}

	if err := compiledSchema.Validate(v); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return formatSchemaError(verr)
		}
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// formatSchemaError flattens the leaf causes of a validation error.
func formatSchemaError(err *jsonschema.ValidationError) error {
	var messages []string
	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
			return
		}
		for _, c := range e.Causes {
			collect(c)
		}
	}
	collect(err)
	return fmt.Errorf("invalid policy: %s", strings.Join(messages, "; "))
}

// Lint reports entries that load fine but cannot behave as written.
func Lint(doc *Document) []string {
	var warnings []string
	seen := make(map[string]int)

	for i, user := range doc.UsersInfo {
		if first, ok := seen[user.UserName]; ok {
			warnings = append(warnings, fmt.Sprintf("UsersInfo[%d]: user %q already defined at UsersInfo[%d]; this entry is ignored", i, user.UserName, first))
			continue
		}
		seen[user.UserName] = i

		if len(user.AccessList) == 0 {
			warnings = append(warnings, fmt.Sprintf("UsersInfo[%d]: user %q has an empty access list", i, user.UserName))
		}

		for j, rule := range user.AccessList {
			if !KnownRole(rule.Role) {
				warnings = append(warnings, fmt.Sprintf("UsersInfo[%d].AccessList[%d]: role %q grants nothing", i, j, rule.Role))
			}
			if idx := strings.IndexByte(rule.Branch, '*'); idx >= 0 && idx != len(rule.Branch)-1 {
				warnings = append(warnings, fmt.Sprintf("UsersInfo[%d].AccessList[%d]: %q only supports a trailing '*'; matched literally", i, j, rule.Branch))
			}
		}
	}
	return warnings
}
