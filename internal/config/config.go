package config

import "github.com/spf13/viper"

// Config holds all runtime configuration for a tfrank run.
// Values are populated from .tfrank.yaml, TFRANK_* env vars, and CLI flags.
type Config struct {
	Edges      int     `mapstructure:"edges"`
	Workers    int     `mapstructure:"workers"`
	SortBy     string  `mapstructure:"sort_by"`
	Separator  string  `mapstructure:"separator"`
	PadjCutoff float64 `mapstructure:"padj_cutoff"`
	PathCutoff float64 `mapstructure:"path_cutoff"`
	Overlap    float64 `mapstructure:"overlap"`
	TPM        float64 `mapstructure:"tpm"`
	Telemetry  string  `mapstructure:"telemetry"`
	Verbose    bool    `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("edges", 100_000)
	viper.SetDefault("workers", 1)
	viper.SetDefault("sort_by", "prob")
	viper.SetDefault("separator", "—")
	viper.SetDefault("padj_cutoff", 0.05)
	viper.SetDefault("path_cutoff", 0.6)
	viper.SetDefault("overlap", 0.98)
	viper.SetDefault("tpm", 20.0)
	viper.SetDefault("telemetry", "")
	viper.SetDefault("verbose", false)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
