package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"dcm2bids/internal/bids"
	"dcm2bids/internal/errors"
)

// Search methods for criteria matching.
const (
	SearchFnmatch = "fnmatch"
	SearchRegex   = "re"
)

// DefaultDcm2niixOptions are passed to dcm2niix when the config sets none.
const DefaultDcm2niixOptions = "-b y -ba y -z y -f '%3s_%f_%p_%t'"

// DefaultCompKeys order sidecars before pairing.
var DefaultCompKeys = []string{"SeriesNumber", "AcquisitionTime", "SidecarFilename"}

// Config is the user configuration mapping sidecars to BIDS names.
type Config struct {
	Descriptions    []Description
	SearchMethod    string
	CaseSensitive   bool
	Dcm2niixOptions string
	CompKeys        []string
	CompressNifti   bool

	// Path is the file the config was loaded from.
	Path string
}

// Description classifies every sidecar matching Criteria.
type Description struct {
	DataType       string
	ModalityLabel  string
	CustomLabels   string
	Criteria       map[string]interface{}
	SidecarChanges map[string]interface{}
	IntendedFor    bids.IntendedFor
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Descriptions:    []Description{},
		SearchMethod:    SearchFnmatch,
		CaseSensitive:   true,
		Dcm2niixOptions: DefaultDcm2niixOptions,
		CompKeys:        append([]string(nil), DefaultCompKeys...),
	}
}

// LoadConfig loads a descriptions config. The format follows the file
// extension: .json, .toml, .yaml or .yml.
//
// viper is not used here: it folds keys to lower case, and criteria and
// sidecarChanges keys are case-sensitive sidecar field names.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewDcm2bidsError(errors.ConfigNotFound, "config file not found: "+path, err, nil)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	raw := map[string]interface{}{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		err = json.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, errors.NewDcm2bidsError(errors.ConfigInvalid, "unsupported config format "+ext, nil, nil)
	}
	if err != nil {
		return nil, errors.NewDcm2bidsError(errors.ConfigInvalid, "cannot decode "+path, err, nil)
	}

	cfg, err := FromMap(raw)
	if err != nil {
		return nil, errors.NewDcm2bidsError(errors.ConfigInvalid, "invalid config "+path, err, nil)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewDcm2bidsError(errors.ConfigInvalid, "invalid config "+path, err, nil)
	}

	return cfg, nil
}

// FromMap builds a Config from a decoded document, applying defaults for
// missing keys.
func FromMap(raw map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if v, ok := raw["searchMethod"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, &ConfigError{Field: "searchMethod", Message: "must be a string"}
		}
		cfg.SearchMethod = s
	}
	if v, ok := raw["caseSensitive"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, &ConfigError{Field: "caseSensitive", Message: "must be a boolean"}
		}
		cfg.CaseSensitive = b
	}
	if v, ok := raw["dcm2niixOptions"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, &ConfigError{Field: "dcm2niixOptions", Message: "must be a string"}
		}
		cfg.Dcm2niixOptions = s
	}
	if v, ok := raw["compressNifti"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, &ConfigError{Field: "compressNifti", Message: "must be a boolean"}
		}
		cfg.CompressNifti = b
	}
	if v, ok := raw["compKeys"]; ok {
		keys, err := stringList(v)
		if err != nil {
			return nil, &ConfigError{Field: "compKeys", Message: err.Error()}
		}
		cfg.CompKeys = keys
	}

	rawDescriptions, ok := raw["descriptions"]
	if !ok {
		return nil, &ConfigError{Field: "descriptions", Message: "missing"}
	}
	var list []interface{}
	switch l := rawDescriptions.(type) {
	case []interface{}:
		list = l
	case []map[string]interface{}:
		for _, m := range l {
			list = append(list, m)
		}
	default:
		return nil, &ConfigError{Field: "descriptions", Message: "must be a list"}
	}

	for i, item := range list {
		m, ok := asMap(item)
		if !ok {
			return nil, &ConfigError{Field: fmt.Sprintf("descriptions[%d]", i), Message: "must be an object"}
		}
		d, err := descriptionFromMap(m)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("descriptions[%d]", i), Message: err.Error()}
		}
		cfg.Descriptions = append(cfg.Descriptions, d)
	}

	return cfg, nil
}

func descriptionFromMap(m map[string]interface{}) (Description, error) {
	var d Description
	var err error

	if d.DataType, err = optionalString(m, "dataType"); err != nil {
		return d, err
	}
	if d.ModalityLabel, err = optionalString(m, "modalityLabel"); err != nil {
		return d, err
	}
	if d.CustomLabels, err = optionalString(m, "customLabels"); err != nil {
		return d, err
	}

	d.Criteria = map[string]interface{}{}
	if v, ok := m["criteria"]; ok {
		c, ok := asMap(v)
		if !ok {
			return d, fmt.Errorf("criteria must be an object")
		}
		d.Criteria = c
	}

	d.SidecarChanges = map[string]interface{}{}
	if v, ok := m["sidecarChanges"]; ok {
		c, ok := asMap(v)
		if !ok {
			return d, fmt.Errorf("sidecarChanges must be an object")
		}
		d.SidecarChanges = c
	}

	intended, ok := m["intendedFor"]
	if !ok {
		intended = m["IntendedFor"]
	}
	if d.IntendedFor, err = bids.ParseIntendedFor(intended); err != nil {
		return d, err
	}

	return d, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SearchMethod != SearchFnmatch && c.SearchMethod != SearchRegex {
		return &ConfigError{Field: "searchMethod", Message: fmt.Sprintf("must be %q or %q", SearchFnmatch, SearchRegex)}
	}

	if len(c.Descriptions) == 0 {
		return &ConfigError{Field: "descriptions", Message: "at least one description is required"}
	}

	for i, d := range c.Descriptions {
		field := fmt.Sprintf("descriptions[%d]", i)
		if strings.TrimSpace(d.DataType) == "" {
			return &ConfigError{Field: field + ".dataType", Message: "required"}
		}
		if strings.TrimSpace(d.ModalityLabel) == "" {
			return &ConfigError{Field: field + ".modalityLabel", Message: "required"}
		}
		if c.SearchMethod == SearchRegex {
			if err := validatePatterns(d.Criteria); err != nil {
				return &ConfigError{Field: field + ".criteria", Message: err.Error()}
			}
		}
	}

	return nil
}

func validatePatterns(criteria map[string]interface{}) error {
	for tag, pattern := range criteria {
		patterns := []interface{}{pattern}
		if list, ok := pattern.([]interface{}); ok {
			patterns = list
		}
		for _, p := range patterns {
			s, ok := p.(string)
			if !ok {
				continue
			}
			if _, err := regexp.Compile(s); err != nil {
				return fmt.Errorf("%s: %v", tag, err)
			}
		}
	}
	return nil
}

// ToMap renders the config as a plain document, the inverse of FromMap.
func (c *Config) ToMap() map[string]interface{} {
	descriptions := make([]map[string]interface{}, 0, len(c.Descriptions))
	for _, d := range c.Descriptions {
		m := map[string]interface{}{
			"dataType":      d.DataType,
			"modalityLabel": d.ModalityLabel,
			"criteria":      d.Criteria,
		}
		if d.CustomLabels != "" {
			m["customLabels"] = d.CustomLabels
		}
		if len(d.SidecarChanges) > 0 {
			m["sidecarChanges"] = d.SidecarChanges
		}
		if d.IntendedFor.Requested() {
			m["intendedFor"] = d.IntendedFor.Indices()
		}
		descriptions = append(descriptions, m)
	}

	return map[string]interface{}{
		"searchMethod":    c.SearchMethod,
		"caseSensitive":   c.CaseSensitive,
		"dcm2niixOptions": c.Dcm2niixOptions,
		"compKeys":        c.CompKeys,
		"compressNifti":   c.CompressNifti,
		"descriptions":    descriptions,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

func optionalString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func stringList(v interface{}) ([]string, error) {
	if strs, ok := v.([]string); ok {
		return append([]string(nil), strs...), nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("must be a list of strings")
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("must be a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

// asMap accepts the map shapes produced by the three decoders.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
