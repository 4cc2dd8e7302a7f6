package legacy

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

const (
	// PolicyExt is the extension policy artifacts are recognised by.
	PolicyExt = ".yaml"
	// DefaultPolicyName is used when a fresh policy is bootstrapped.
	DefaultPolicyName = "recipients" + PolicyExt

	thresholdField = "threshold"
	sharesField    = "shares"
)

// blankPolicy is a syntactically valid placeholder: threshold unset and two
// empty identity slots for a person to fill in.
const blankPolicy = `threshold:
shares:
  -
  -
# No config found, created blank config
`

// RecipientPolicy is the threshold policy bound into a ciphertext.
type RecipientPolicy struct {
	Threshold  int
	Identities []PublicIdentity
}

// Total is the number of authorized identities.
func (p *RecipientPolicy) Total() int { return len(p.Identities) }

// Authorizes reports whether id is one of the policy's identities.
func (p *RecipientPolicy) Authorizes(id PublicIdentity) bool {
	for _, known := range p.Identities {
		if known == id {
			return true
		}
	}
	return false
}

// Validate checks the policy invariants.
func (p *RecipientPolicy) Validate() error {
	if len(p.Identities) == 0 {
		return &Error{Code: PolicyMalformed, Detail: "no identities listed under " + sharesField}
	}
	if p.Threshold < 1 {
		return Errorf(PolicyMalformed, "threshold must be at least 1, got %d", p.Threshold)
	}
	if p.Threshold > len(p.Identities) {
		return Errorf(PolicyMalformed, "threshold %d exceeds the %d listed identities", p.Threshold, len(p.Identities))
	}
	seen := make(map[PublicIdentity]struct{}, len(p.Identities))
	for _, id := range p.Identities {
		if !id.Valid() {
			return Errorf(PolicyMalformed, "%q is not a public identity", string(id))
		}
		if _, ok := seen[id]; ok {
			return Errorf(PolicyMalformed, "identity %s is listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

type policyDoc struct {
	Threshold int      `yaml:"threshold"`
	Shares    []string `yaml:"shares"`
}

// MarshalPolicy renders p in the artifact format the combination tool reads.
func MarshalPolicy(p *RecipientPolicy) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	doc := policyDoc{Threshold: p.Threshold, Shares: make([]string, len(p.Identities))}
	for i, id := range p.Identities {
		doc.Shares[i] = string(id)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsePolicy reads a policy artifact. Comments and blank lines are
// tolerated; blank identity slots are skipped. The result is validated.
func ParsePolicy(data []byte) (*RecipientPolicy, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &Error{Code: PolicyMalformed, Err: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &Error{Code: PolicyMalformed, Detail: "expected threshold and shares fields"}
	}

	var thresholdNode, sharesNode *yaml.Node
	m := root.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		var slot **yaml.Node
		switch m.Content[i].Value {
		case thresholdField:
			slot = &thresholdNode
		case sharesField:
			slot = &sharesNode
		default:
			continue
		}
		if *slot != nil {
			return nil, Errorf(PolicyMalformed, "%s is set more than once (line %d)", m.Content[i].Value, m.Content[i].Line)
		}
		*slot = m.Content[i+1]
	}

	if thresholdNode == nil {
		return nil, &Error{Code: PolicyMalformed, Detail: "unable to find threshold value"}
	}
	if thresholdNode.Kind != yaml.ScalarNode || thresholdNode.Tag == "!!null" {
		return nil, &Error{Code: PolicyMalformed, Detail: "threshold is not set"}
	}
	threshold, err := strconv.Atoi(thresholdNode.Value)
	if err != nil {
		return nil, Errorf(PolicyMalformed, "threshold %q is not an integer", thresholdNode.Value)
	}

	if sharesNode == nil {
		return nil, &Error{Code: PolicyMalformed, Detail: "unable to find shares"}
	}
	p := &RecipientPolicy{Threshold: threshold}
	switch {
	case sharesNode.Kind == yaml.SequenceNode:
		for _, item := range sharesNode.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, &Error{Code: PolicyMalformed, Detail: "shares must be a list of identities"}
			}
			if item.Tag == "!!null" || item.Value == "" {
				continue
			}
			p.Identities = append(p.Identities, PublicIdentity(item.Value))
		}
	case sharesNode.Tag == "!!null":
	default:
		return nil, &Error{Code: PolicyMalformed, Detail: "shares must be a list of identities"}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// IsBlankPolicy reports whether data is the untouched placeholder written by
// GenerateBlankPolicy.
func IsBlankPolicy(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), bytes.TrimSpace([]byte(blankPolicy)))
}

// LocatePolicy finds the single policy artifact in dir.
func LocatePolicy(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+PolicyExt))
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", dir, err)
	}
	switch len(matches) {
	case 0:
		return "", Errorf(PolicyMissing, "no recipients %s file found in %s", PolicyExt, dir)
	case 1:
		return matches[0], nil
	default:
		return "", Errorf(PolicyAmbiguous, "too many recipients %s files (%d) found in %s", PolicyExt, len(matches), dir)
	}
}

// ReadPolicy parses the policy artifact at path.
func ReadPolicy(path string) (*RecipientPolicy, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Errorf(PolicyMissing, "config file not found at %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Detail != "" {
			e.Detail = filepath.Base(path) + ": " + e.Detail
		}
		return nil, err
	}
	return p, nil
}

// LoadPolicy locates and parses the single policy artifact in dir. It
// returns the artifact's path alongside the policy.
func LoadPolicy(dir string) (*RecipientPolicy, string, error) {
	path, err := LocatePolicy(dir)
	if err != nil {
		return nil, "", err
	}
	p, err := ReadPolicy(path)
	if err != nil {
		return nil, path, err
	}
	return p, path, nil
}

// GenerateBlankPolicy makes sure dir holds a policy artifact, writing the
// placeholder when none exists. It returns the path of the policy in dir and
// whether it was created.
func GenerateBlankPolicy(dir string) (string, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path, err := LocatePolicy(dir)
	if err == nil {
		return path, false, nil
	}
	if !errors.Is(err, ErrPolicyMissing) {
		return "", false, err
	}

	path = filepath.Join(dir, DefaultPolicyName)
	if err := renameio.WriteFile(path, []byte(blankPolicy), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write blank policy: %w", err)
	}
	return path, true, nil
}

// SavePolicy writes p to path. An existing artifact is only replaced when
// overwrite is set.
func SavePolicy(p *RecipientPolicy, path string, overwrite bool) error {
	data, err := MarshalPolicy(p)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return Errorf(OverwriteDeclined, "existing %s was not overwritten", filepath.Base(path))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write policy %s: %w", path, err)
	}
	return nil
}
