package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/relab/benor"
)

// NewViper creates a Config from the flags and config file bound to viper.
func NewViper() (*Config, error) {
	intFaultyIDs := viper.GetIntSlice("faulty-ids")
	faultyIDs := make([]benor.ID, 0, len(intFaultyIDs))
	for _, id := range intFaultyIDs {
		if id < 0 {
			return nil, fmt.Errorf("invalid faulty node ID %d", id)
		}
		faultyIDs = append(faultyIDs, benor.ID(id))
	}

	cfg := &Config{
		Nodes:         viper.GetInt("nodes"),
		Faulty:        viper.GetInt("faulty"),
		FaultyIDs:     faultyIDs,
		BasePort:      viper.GetInt("base-port"),
		MaxRounds:     benor.Round(viper.GetUint64("max-rounds")),
		Lookahead:     benor.Round(viper.GetUint64("lookahead")),
		SettleDelay:   viper.GetDuration("settle-delay"),
		Timeout:       viper.GetDuration("timeout"),
		Seed:          viper.GetInt64("seed"),
		SendRate:      viper.GetFloat64("send-rate"),
		Output:        viper.GetString("output"),
		LogLevel:      viper.GetString("log-level"),
		CpuProfile:    viper.GetBool("cpu-profile"),
		MemProfile:    viper.GetBool("mem-profile"),
		Trace:         viper.GetBool("trace"),
		FgProfProfile: viper.GetBool("fgprof-profile"),
	}

	var err error
	if values := viper.GetStringSlice("values"); len(values) > 0 {
		cfg.Values, err = ParseValues(values)
		if err != nil {
			return nil, fmt.Errorf("invalid initial values: %w", err)
		}
	} else {
		cfg.Values = AlternatingValues(cfg.Nodes)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Output != "" {
		cfg.Output, err = filepath.Abs(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		err = os.MkdirAll(cfg.Output, 0o755)
		if err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return cfg, nil
}
