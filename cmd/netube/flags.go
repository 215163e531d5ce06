package main

import (
	"github.com/spf13/pflag"

	"github.com/wtask/netube/internal/config"
)

const (
	configFlag      = "config"
	leftHostFlag    = "left.host"
	leftPortFlag    = "left.port"
	rightHostFlag   = "right.host"
	rightPortFlag   = "right.port"
	secretFlag      = "secret"
	cipherFlag      = "cipher"
	hashFlag        = "hash"
	exchangeFlag    = "exchange"
	logLevelFlag    = "log.level"
	logConsoleFlag  = "log.console"
	logFileFlag     = "log.file"
	metricsFlag     = "metrics"
	metricsAddrFlag = "metrics.addr"
	acceptRateFlag  = "accept.rate"
	acceptBurstFlag = "accept.burst"
)

func registerFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.StringP(configFlag, "c", "", "load config from the TOML file, flags override its values")
	fs.String(leftHostFlag, d.LeftHost, "listen address")
	fs.Int(leftPortFlag, d.LeftPort, "listen port, 0 to choose free one")
	fs.String(rightHostFlag, d.RightHost, "remote address (descriptive)")
	fs.Int(rightPortFlag, d.RightPort, "remote port (descriptive)")
	fs.String(secretFlag, d.Secret, "shared secret (descriptive)")
	fs.String(cipherFlag, d.Cipher, "cipher name (descriptive)")
	fs.String(hashFlag, d.Hash, "hash name (descriptive)")
	fs.String(exchangeFlag, d.Exchange, "key exchange name (descriptive)")
	fs.String(logLevelFlag, d.Log.Level, "log level: debug, info, warn, error")
	fs.Bool(logConsoleFlag, d.Log.Console, "human-friendly log output instead of JSON")
	fs.String(logFileFlag, d.Log.File, "duplicate log into rotated file")
	fs.Bool(metricsFlag, d.Metrics.Enabled, "expose prometheus metrics")
	fs.String(metricsAddrFlag, d.Metrics.Addr, "address of prometheus metrics endpoint")
	fs.Float64(acceptRateFlag, d.Accept.Rate, "max accepted connections per second, 0 for no limit")
	fs.Int(acceptBurstFlag, d.Accept.Burst, "burst of accepted connections when rate is limited")
}

// applyFlags - overrides config values with flags set explicitly.
func applyFlags(fs *pflag.FlagSet, c *config.Configuration) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}
	flag := func(name string, dst *bool) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetBool(name)
		}
	}

	str(leftHostFlag, &c.LeftHost)
	num(leftPortFlag, &c.LeftPort)
	str(rightHostFlag, &c.RightHost)
	num(rightPortFlag, &c.RightPort)
	str(secretFlag, &c.Secret)
	str(cipherFlag, &c.Cipher)
	str(hashFlag, &c.Hash)
	str(exchangeFlag, &c.Exchange)
	str(logLevelFlag, &c.Log.Level)
	flag(logConsoleFlag, &c.Log.Console)
	str(logFileFlag, &c.Log.File)
	flag(metricsFlag, &c.Metrics.Enabled)
	str(metricsAddrFlag, &c.Metrics.Addr)
	if err == nil && fs.Changed(acceptRateFlag) {
		c.Accept.Rate, err = fs.GetFloat64(acceptRateFlag)
	}
	num(acceptBurstFlag, &c.Accept.Burst)
	return err
}

// loadConfig - builds effective configuration from optional file and flags.
func loadConfig(fs *pflag.FlagSet) (config.Configuration, error) {
	c := config.Default()
	file, err := fs.GetString(configFlag)
	if err != nil {
		return c, err
	}
	if file != "" {
		if c, err = config.Load(file); err != nil {
			return c, err
		}
	}
	if err := applyFlags(fs, &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}
