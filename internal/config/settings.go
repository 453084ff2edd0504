package config

import (
	"os"
	"sort"

	"github.com/spf13/viper"
)

// Settings are the runtime options of the tool itself, as opposed to the
// per-study descriptions config.
type Settings struct {
	LogLevel      string `json:"logLevel" toml:"logLevel" mapstructure:"logLevel"`
	LogFormat     string `json:"logFormat" toml:"logFormat" mapstructure:"logFormat"`
	LogMaxSize    string `json:"logMaxSize" toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `json:"logMaxBackups" toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	Dcm2niixPath  string `json:"dcm2niix" toml:"dcm2niix" mapstructure:"dcm2niix"`
	NoUpdateCheck bool   `json:"noUpdateCheck" toml:"noUpdateCheck" mapstructure:"noUpdateCheck"`
	Clobber       bool   `json:"clobber" toml:"clobber" mapstructure:"clobber"`
	ForceDcm2niix bool   `json:"forceDcm2niix" toml:"forceDcm2niix" mapstructure:"forceDcm2niix"`
}

// envBindings maps settings keys to environment variables.
var envBindings = map[string]string{
	"logLevel":      "DCM2BIDS_LOG_LEVEL",
	"logFormat":     "DCM2BIDS_LOG_FORMAT",
	"logMaxSize":    "DCM2BIDS_LOG_MAX_SIZE",
	"logMaxBackups": "DCM2BIDS_LOG_MAX_BACKUPS",
	"dcm2niix":      "DCM2BIDS_DCM2NIIX",
	"noUpdateCheck": "DCM2BIDS_NO_UPDATE_CHECK",
	"clobber":       "DCM2BIDS_CLOBBER",
	"forceDcm2niix": "DCM2BIDS_FORCE_DCM2NIIX",
}

// DefaultSettings returns the default settings
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel:      "INFO",
		LogFormat:     "human",
		LogMaxSize:    "10MB",
		LogMaxBackups: 3,
		Dcm2niixPath:  "dcm2niix",
	}
}

// NewViper returns a viper instance with defaults and environment bindings
// applied. Callers may bind command flags to it before LoadSettings.
func NewViper() *viper.Viper {
	v := viper.New()

	d := DefaultSettings()
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logFormat", d.LogFormat)
	v.SetDefault("logMaxSize", d.LogMaxSize)
	v.SetDefault("logMaxBackups", d.LogMaxBackups)
	v.SetDefault("dcm2niix", d.Dcm2niixPath)
	v.SetDefault("noUpdateCheck", d.NoUpdateCheck)
	v.SetDefault("clobber", d.Clobber)
	v.SetDefault("forceDcm2niix", d.ForceDcm2niix)

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	return v
}

// LoadSettings reads settings.{json,toml,yaml} from dir, if present, and
// resolves every key against flags, environment and defaults.
func LoadSettings(v *viper.Viper, dir string) (*Settings, error) {
	if dir != "" {
		v.SetConfigName("settings")
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}

	return &s, nil
}

// EnvOverride is an environment variable that changes a setting.
type EnvOverride struct {
	Key   string `json:"key"`
	Env   string `json:"env"`
	Value string `json:"value"`
}

// EnvOverrides lists the DCM2BIDS_* variables currently set.
func EnvOverrides() []EnvOverride {
	var out []EnvOverride
	for key, env := range envBindings {
		if value, ok := os.LookupEnv(env); ok {
			out = append(out, EnvOverride{Key: key, Env: env, Value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Env < out[j].Env })
	return out
}

// EnvVariables lists every supported environment variable, sorted.
func EnvVariables() []string {
	out := make([]string, 0, len(envBindings))
	for _, env := range envBindings {
		out = append(out, env)
	}
	sort.Strings(out)
	return out
}
