package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// errPflagsNotParsed signals that BindPFlags was called before the flag set
// was parsed, since unparsed pflag.Value.String() calls silently return zero
// values instead of erroring.
var errPflagsNotParsed = errors.New("caching query executor: pflag set has not been parsed")

// flagPrefix namespaces every flag this package registers so a single
// binary can host several executors' worth of config flags without
// collision.
const flagPrefix = "caching-executor-"

// AddPFlags registers one flag per persisted Config field on flags, seeded
// with the current values of cfg.
func AddPFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.StringVar(&cfg.ExecutorID, flagPrefix+"id", cfg.ExecutorID, "caching query executor identifier")
	flags.StringVar(&cfg.ExecutorType, flagPrefix+"type", cfg.ExecutorType, "caching query executor type tag")
	flags.Int64Var(&cfg.Expiration, flagPrefix+"expiration-ms", cfg.Expiration, "cache populate TTL in milliseconds, 0 disables populate")
	flags.Int64Var(&cfg.MaxExpiration, flagPrefix+"max-expiration-ms", cfg.MaxExpiration, "upper clamp for timestamp-derived TTLs, in milliseconds")
	flags.BoolVar(&cfg.Simultaneous, flagPrefix+"simultaneous", cfg.Simultaneous, "race the cache lookup and downstream query instead of sequencing them")
	flags.BoolVar(&cfg.UseTimestamps, flagPrefix+"use-timestamps", cfg.UseTimestamps, "derive cache TTL from query time bounds instead of using expiration verbatim")
	flags.String(flagPrefix+"config", "", "optional YAML file overriding the flag defaults above")
}

// BindPFlags overrides cfg's fields with any values the caller set on
// flags (CLI takes precedence over the YAML file, which takes precedence
// over the seed values passed to AddPFlags), and reports whether a config
// file was actually read. flags must already be parsed.
func BindPFlags(cfg *Config, flags *pflag.FlagSet) (configFileUsed bool, err error) {
	if !flags.Parsed() {
		return false, errPflagsNotParsed
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return false, fmt.Errorf("failed to bind pflags: %w", err)
	}

	path, err := flags.GetString(flagPrefix + "config")
	if err != nil {
		return false, fmt.Errorf("failed to read %s flag: %w", flagPrefix+"config", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return false, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		configFileUsed = true
	}

	cfg.ExecutorID = v.GetString(flagPrefix + "id")
	cfg.ExecutorType = v.GetString(flagPrefix + "type")
	cfg.Expiration = v.GetInt64(flagPrefix + "expiration-ms")
	cfg.MaxExpiration = v.GetInt64(flagPrefix + "max-expiration-ms")
	cfg.Simultaneous = v.GetBool(flagPrefix + "simultaneous")
	cfg.UseTimestamps = v.GetBool(flagPrefix + "use-timestamps")

	return configFileUsed, nil
}
