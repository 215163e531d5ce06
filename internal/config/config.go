package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/wtask/netube/pkg/semver"
)

// Names of supported tunnel parameters. They are descriptive only,
// the server does not encrypt, hash or exchange keys.
const (
	CipherChaCha20Poly1305 = "chacha20poly1305"
	CipherAES256GCM        = "aes-256-gcm"
	CipherAES128GCM        = "aes-128-gcm"

	HashSHA256  = "sha256"
	HashSHA512  = "sha512"
	HashBLAKE2b = "blake2b"

	ExchangeX25519 = "x25519"
	ExchangeP256   = "p256"
)

var (
	// Ciphers - accepted cipher names
	Ciphers = []string{CipherChaCha20Poly1305, CipherAES256GCM, CipherAES128GCM}
	// Hashes - accepted hash names
	Hashes = []string{HashSHA256, HashSHA512, HashBLAKE2b}
	// Exchanges - accepted key exchange names
	Exchanges = []string{ExchangeX25519, ExchangeP256}

	// CurrentVersion - version of config file layout written by this build
	CurrentVersion = semver.V{Major: 1, Minor: 0, Patch: 0}
)

type (
	// Configuration - server configuration.
	// Only LeftHost and LeftPort are used to bind the server,
	// the right side and tunnel parameters are kept for description.
	Configuration struct {
		Version   string `toml:"Version"`
		LeftHost  string `toml:"LeftHost"`
		LeftPort  int    `toml:"LeftPort"`
		RightHost string `toml:"RightHost"`
		RightPort int    `toml:"RightPort"`
		Secret    string `toml:"Secret"`
		Cipher    string `toml:"Cipher"`
		Hash      string `toml:"Hash"`
		Exchange  string `toml:"Exchange"`

		Log     Log     `toml:"Log"`
		Metrics Metrics `toml:"Metrics"`
		Accept  Accept  `toml:"Accept"`
	}

	// Log - logging setup
	Log struct {
		Level   string `toml:"Level"`
		Console bool   `toml:"Console"`
		// File - when not empty, log is duplicated into rotated file
		File       string `toml:"File"`
		MaxSizeMB  int    `toml:"MaxSizeMB"`
		MaxBackups int    `toml:"MaxBackups"`
		MaxAgeDays int    `toml:"MaxAgeDays"`
	}

	// Metrics - prometheus endpoint setup
	Metrics struct {
		Enabled bool   `toml:"Enabled"`
		Addr    string `toml:"Addr"`
	}

	// Accept - admission of new connections. Zero rate means no limit.
	Accept struct {
		Rate  float64 `toml:"Rate"`
		Burst int     `toml:"Burst"`
	}
)

// Default - returns configuration used when nothing is specified.
func Default() Configuration {
	return Configuration{
		Version:   CurrentVersion.String(),
		LeftHost:  "0.0.0.0",
		LeftPort:  443,
		RightHost: "8.8.8.8",
		RightPort: 2333,
		Secret:    "EyesOnly",
		Cipher:    CipherChaCha20Poly1305,
		Hash:      HashSHA256,
		Exchange:  ExchangeX25519,
		Log: Log{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    "127.0.0.1:9900",
		},
		Accept: Accept{
			Rate:  0,
			Burst: 1,
		},
	}
}

// Validate - checks configuration values.
func (c Configuration) Validate() error {
	v, err := semver.Parse(c.Version)
	if err != nil {
		return errors.Wrap(err, "config: invalid Version")
	}
	if !CurrentVersion.Compatible(v) {
		return errors.Errorf("config: version %s is not supported, expected %d.x.x up to %s", v, CurrentVersion.Major, CurrentVersion)
	}
	if c.LeftPort < 0 || c.LeftPort > 65535 {
		return errors.Errorf("config: invalid LeftPort (%d)", c.LeftPort)
	}
	if c.RightPort < 1 || c.RightPort > 65535 {
		return errors.Errorf("config: invalid RightPort (%d)", c.RightPort)
	}
	if err := checkStringAccepted("Cipher", c.Cipher, Ciphers); err != nil {
		return err
	}
	if err := checkStringAccepted("Hash", c.Hash, Hashes); err != nil {
		return err
	}
	if err := checkStringAccepted("Exchange", c.Exchange, Exchanges); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return errors.Wrapf(err, "config: invalid Log.Level %q", c.Log.Level)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("config: Metrics.Addr is required when metrics are enabled")
	}
	if c.Accept.Rate < 0 {
		return errors.Errorf("config: invalid Accept.Rate (%v)", c.Accept.Rate)
	}
	if c.Accept.Rate > 0 && c.Accept.Burst < 1 {
		return errors.Errorf("config: Accept.Burst (%d) must be at least 1", c.Accept.Burst)
	}
	return nil
}

func checkStringAccepted(field string, val string, accepts []string) error {
	for _, accept := range accepts {
		if val == accept {
			return nil
		}
	}
	return errors.Errorf("config: unknown %s %q (%s)", field, val, strings.Join(accepts, ", "))
}

// String - human-readable rendering of tunnel configuration. Secret is masked.
func (c Configuration) String() string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "left_host : %s\n", c.LeftHost)
	fmt.Fprintf(&b, "left_port : %d\n", c.LeftPort)
	fmt.Fprintf(&b, "right_host: %s\n", c.RightHost)
	fmt.Fprintf(&b, "right_port: %d\n", c.RightPort)
	fmt.Fprintf(&b, "secret    : %s\n", mask(c.Secret))
	fmt.Fprintf(&b, "cipher    : %s\n", c.Cipher)
	fmt.Fprintf(&b, "hash      : %s\n", c.Hash)
	fmt.Fprintf(&b, "exchange  : %s", c.Exchange)
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}
