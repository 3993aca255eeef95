// Package config loads CLI settings from a YAML file, VCREFRESH_* env
// variables and flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dannyswat/vcrefresh"
	"github.com/spf13/viper"
)

// Keys shared with flag bindings.
const (
	KeyThreshold        = "diff.replace_all_threshold"
	KeyIgnoreWhitespace = "diff.ignore_whitespace"
	KeyEncoding         = "output.encoding"
	KeyNamespace        = "output.namespace"
	KeyStats            = "output.stats"
)

const (
	EncodingScript = "script"
	EncodingJSONL  = "jsonl"
)

const (
	StatsNone = "none"
	StatsYAML = "yaml"
	StatsJSON = "json"
)

type Config struct {
	Diff struct {
		ReplaceAllThreshold int  `mapstructure:"replace_all_threshold"`
		IgnoreWhitespace    bool `mapstructure:"ignore_whitespace"`
	} `mapstructure:"diff"`
	Output struct {
		Encoding  string `mapstructure:"encoding"`
		Namespace string `mapstructure:"namespace"`
		Stats     string `mapstructure:"stats"`
	} `mapstructure:"output"`
}

// New returns a viper instance with defaults and env lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyThreshold, vcrefresh.DefaultReplaceAllThreshold)
	v.SetDefault(KeyIgnoreWhitespace, false)
	v.SetDefault(KeyEncoding, EncodingScript)
	v.SetDefault(KeyNamespace, vcrefresh.DefaultScriptNamespace)
	v.SetDefault(KeyStats, StatsNone)

	v.SetEnvPrefix("VCREFRESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, or vcrefresh.yaml from the usual places when file is
// empty, and decodes the result. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("vcrefresh")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Diff.ReplaceAllThreshold < 0 {
		return fmt.Errorf("%s must not be negative, got %d", KeyThreshold, c.Diff.ReplaceAllThreshold)
	}
	switch c.Output.Encoding {
	case EncodingScript, EncodingJSONL:
	default:
		return fmt.Errorf("unknown %s %q", KeyEncoding, c.Output.Encoding)
	}
	switch c.Output.Stats {
	case StatsNone, StatsYAML, StatsJSON:
	default:
		return fmt.Errorf("unknown %s %q", KeyStats, c.Output.Stats)
	}
	return nil
}

// Encoder returns the instruction encoder selected by Output.Encoding.
func (c *Config) Encoder() vcrefresh.InstructionEncoder {
	if c.Output.Encoding == EncodingJSONL {
		return vcrefresh.JSONLinesEncoder{}
	}
	return vcrefresh.ScriptEncoder{Namespace: c.Output.Namespace}
}

func (c *Config) EngineOptions() []vcrefresh.Option {
	return []vcrefresh.Option{
		vcrefresh.WithReplaceAllThreshold(c.Diff.ReplaceAllThreshold),
		vcrefresh.WithEncoder(c.Encoder()),
	}
}

func (c *Config) BuildOptions() []vcrefresh.BuildOption {
	if !c.Diff.IgnoreWhitespace {
		return nil
	}
	return []vcrefresh.BuildOption{vcrefresh.WithTreeOptions(vcrefresh.IgnoreWhitespace())}
}
