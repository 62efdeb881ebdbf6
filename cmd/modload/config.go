package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/modload/runtime"
)

const (
	envPrefix  = "MODLOAD"
	configName = "modload"
	configType = "yaml"
)

// Config keys. Flag names and yaml keys are the same; environment variables
// are MODLOAD_ plus the upper-cased key with dashes as underscores.
const (
	keyConfig       = "config"
	keyOrigin       = "origin"
	keyVersion      = "version"
	keyVersionParam = "version-param"
	keyUserAgent    = "user-agent"
	keyFetchTimeout = "fetch-timeout"
	keyExecTimeout  = "exec-timeout"
	keyMemoryPages  = "memory-pages"
	keyWasmThreads  = "wasm-threads"
	keyManifest     = "manifest"
	keyOutput       = "output"
	keyVerbose      = "verbose"
)

func addConfigFlags(cmd *cobra.Command) {
	def := runtime.DefaultOptions()
	f := cmd.PersistentFlags()
	f.String(keyConfig, "", "config file (default ./modload.yaml or ~/.config/modload/modload.yaml)")
	f.String(keyOrigin, def.Origin, "origin identifiers resolve against")
	f.String(keyVersion, "", "semver appended to fetched URLs")
	f.String(keyVersionParam, def.VersionParam, "query parameter carrying the version")
	f.String(keyUserAgent, def.UserAgent, "User-Agent for http fetches")
	f.Duration(keyFetchTimeout, def.FetchTimeout, "timeout for each fetch")
	f.Duration(keyExecTimeout, def.ExecTimeout, "timeout for each script body or factory call")
	f.Uint32(keyMemoryPages, 0, "wasm memory limit in 64KB pages (0 = engine default)")
	f.Bool(keyWasmThreads, false, "enable the experimental wasm threads proposal")
	f.StringSlice(keyManifest, nil, "manifest files registered in the global scope")
	f.StringP(keyOutput, "o", "yaml", "output format: yaml or json")
	f.BoolP(keyVerbose, "v", false, "debug logging")
}

// loadConfig builds a viper instance from flags, environment and the
// optional config file. A missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		return v, nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", configName))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	return v, nil
}

func runtimeOptions(v *viper.Viper, log *zap.Logger) runtime.Options {
	opts := runtime.DefaultOptions()
	opts.Logger = log
	opts.Origin = v.GetString(keyOrigin)
	opts.Version = v.GetString(keyVersion)
	opts.VersionParam = v.GetString(keyVersionParam)
	opts.UserAgent = v.GetString(keyUserAgent)
	opts.FetchTimeout = v.GetDuration(keyFetchTimeout)
	opts.ExecTimeout = v.GetDuration(keyExecTimeout)
	opts.MemoryLimitPages = v.GetUint32(keyMemoryPages)
	opts.WasmThreads = v.GetBool(keyWasmThreads)
	return opts
}

// newLogger logs to stderr. Only warnings and errors are shown unless
// verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return cfg.Build()
}
