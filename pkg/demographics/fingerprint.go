package demographics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fingerprint is the exact-match demographic signature of a
// participant. Key is a digest over the normalized field values; two
// participants with the same Key are flagged for duplicate review,
// never merged.
type Fingerprint struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

type PolicyConfig struct {
	Fields []string `yaml:"fields" json:"fields"`
}

// LoadPolicy reads the fingerprint field list from a yaml file, falling
// back to the enrollment form's identity fields when no path is given.
func LoadPolicy(path string) (PolicyConfig, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPolicy(), err
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return PolicyConfig{}, err
	}
	if len(cfg.Fields) == 0 {
		return PolicyConfig{}, fmt.Errorf("no fingerprint fields configured in %s", path)
	}
	return cfg, nil
}

func DefaultPolicy() PolicyConfig {
	return PolicyConfig{Fields: []string{
		"birth_month",
		"birth_year",
		"gender_identity",
		"years_education",
	}}
}

type Fingerprinter struct {
	fields []string
}

func NewFingerprinter(cfg PolicyConfig) *Fingerprinter {
	var fields []string
	for _, f := range cfg.Fields {
		if trimmed := strings.TrimSpace(strings.ToLower(f)); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return &Fingerprinter{fields: fields}
}

// Fingerprint canonicalizes the configured fields of a demographic
// record into a stable digest. Field order is the policy order, so the
// same values always produce the same key.
func (f *Fingerprinter) Fingerprint(record map[string]interface{}) Fingerprint {
	normalized := make(map[string]string, len(f.fields))
	hash := sha256.New()
	for _, field := range f.fields {
		value := normalizeValue(record[field])
		normalized[field] = value
		fmt.Fprintf(hash, "%s=%s\n", field, value)
	}
	return Fingerprint{
		Key:    hex.EncodeToString(hash.Sum(nil)),
		Fields: normalized,
	}
}

func normalizeValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(strings.ToLower(value))
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case bool:
		return strconv.FormatBool(value)
	default:
		return strings.TrimSpace(strings.ToLower(fmt.Sprintf("%v", value)))
	}
}
