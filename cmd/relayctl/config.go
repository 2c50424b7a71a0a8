package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"SwapRelay/internal/config"
)

// cliConfig holds the relayctl configuration.
type cliConfig struct {
	APIURL         string
	RPCURL         string
	ChainsFile     string
	Chain          string
	Relay          string
	NativeSentinel string
	FeeBps         uint64
}

// loadConfig reads flags, SWAPRELAY_* environment variables and an optional
// .swaprelay.yaml from the working or home directory, in that precedence.
func loadConfig(flags *pflag.FlagSet) (*cliConfig, error) {
	v := viper.New()
	v.SetConfigName(".swaprelay")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetDefault("api_url", "http://127.0.0.1:8080")
	v.SetDefault("native_sentinel", config.DefaultNativeSentinel)
	v.SetDefault("fee_bps", 0)

	v.SetEnvPrefix("SWAPRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read .swaprelay.yaml: %w", err)
		}
	}

	for flag, key := range map[string]string{
		"api-url":         "api_url",
		"rpc-url":         "rpc_url",
		"chains":          "chains_file",
		"chain":           "chain",
		"relay":           "relay",
		"native-sentinel": "native_sentinel",
		"bps":             "fee_bps",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	return &cliConfig{
		APIURL:         v.GetString("api_url"),
		RPCURL:         v.GetString("rpc_url"),
		ChainsFile:     v.GetString("chains_file"),
		Chain:          v.GetString("chain"),
		Relay:          v.GetString("relay"),
		NativeSentinel: v.GetString("native_sentinel"),
		FeeBps:         v.GetUint64("fee_bps"),
	}, nil
}
