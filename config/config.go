package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luca-patrignani/fairdeal/cardcipher"
	"github.com/luca-patrignani/fairdeal/commitment"
	"github.com/luca-patrignani/fairdeal/dealer"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "FAIRDEAL"

// Config holds every tunable of a peer. Key sizes and the deck layout are
// configuration, the protocol code never hard codes them.
type Config struct {
	DeckSize   int           `mapstructure:"deck_size"`
	Steps      []int         `mapstructure:"steps"`
	SecretSize int           `mapstructure:"secret_size"`
	Batch      int           `mapstructure:"batch"`
	Hash       string        `mapstructure:"hash"`
	Cipher     string        `mapstructure:"cipher"`
	Suite      string        `mapstructure:"suite"`
	RSABits    int           `mapstructure:"rsa_bits"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Listen     string        `mapstructure:"listen"`
	Peers      []string      `mapstructure:"peers"`
	TLS        bool          `mapstructure:"tls"`
	TLSCert    string        `mapstructure:"tls_cert"`
	TLSKey     string        `mapstructure:"tls_key"`
	TLSCA      string        `mapstructure:"tls_ca"`
	Discover   bool          `mapstructure:"discover"`
	Table      string        `mapstructure:"table"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("deck_size", 52)
	v.SetDefault("steps", []int{})
	v.SetDefault("secret_size", commitment.DefaultSecretSize)
	v.SetDefault("batch", 0)
	v.SetDefault("hash", string(commitment.SHA256))
	v.SetDefault("cipher", "ecies")
	v.SetDefault("suite", "Ed25519")
	v.SetDefault("rsa_bits", cardcipher.MinRSABits)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("listen", "localhost:0")
	v.SetDefault("peers", []string{})
	v.SetDefault("tls", false)
	v.SetDefault("tls_cert", "")
	v.SetDefault("tls_key", "")
	v.SetDefault("tls_ca", "")
	v.SetDefault("discover", false)
	v.SetDefault("table", "default")
}

// RegisterFlags adds the flags overriding the configuration to fs and binds
// them to v.
func RegisterFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.Int("deck-size", 52, "number of cards in the deck")
	fs.IntSlice("steps", nil, "probe steps of the index dealer, coprime with the deck size")
	fs.Int("secret-size", commitment.DefaultSecretSize, "size in bytes of committed secrets")
	fs.Int("batch", 0, "secrets committed at once, 0 commits one secret per deal")
	fs.String("hash", string(commitment.SHA256), "commitment hash: sha256 or sha3-256")
	fs.String("cipher", "ecies", "card cipher: ecies or rsa-oaep")
	fs.String("suite", "Ed25519", "kyber suite of the ecies cipher")
	fs.Int("rsa-bits", cardcipher.MinRSABits, "rsa-oaep key size")
	fs.Duration("timeout", 30*time.Second, "network timeout of every exchange")
	fs.String("listen", "localhost:0", "address to listen on")
	fs.StringSlice("peers", nil, "addresses of the other peers")
	fs.Bool("tls", false, "use mutually authenticated https between peers")
	fs.String("tls-cert", "", "PEM certificate of this peer")
	fs.String("tls-key", "", "PEM private key of this peer")
	fs.String("tls-ca", "", "PEM bundle with the certificates of every peer")
	fs.Bool("discover", false, "find the other peers on the localhost discovery ports")
	fs.String("table", "default", "table name announced by discovery")

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		errs = append(errs, v.BindPFlag(key, f))
	})
	return errors.Join(errs...)
}

// Load reads file, when not empty, and the environment into a validated Config.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(c.Steps) == 0 {
		steps, err := dealer.CoprimeSteps(c.DeckSize)
		if err != nil {
			return Config{}, err
		}
		c.Steps = steps
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	var errs []error
	if c.DeckSize < 2 || c.DeckSize > cardcipher.MaxValue+1 {
		errs = append(errs, fmt.Errorf("deck_size must be in [2, %d], got %d", cardcipher.MaxValue+1, c.DeckSize))
	} else if err := dealer.ValidateSteps(c.DeckSize, c.Steps); err != nil {
		errs = append(errs, err)
	}
	if c.SecretSize < commitment.MinSecretSize {
		errs = append(errs, fmt.Errorf("secret_size must be at least %d bytes, got %d", commitment.MinSecretSize, c.SecretSize))
	}
	if c.Batch < 0 {
		errs = append(errs, fmt.Errorf("batch must not be negative, got %d", c.Batch))
	}
	if _, err := c.Scheme().New(); err != nil {
		errs = append(errs, err)
	}
	switch c.Cipher {
	case "ecies", "":
	case "rsa-oaep":
		if c.RSABits < cardcipher.MinRSABits {
			errs = append(errs, fmt.Errorf("rsa_bits must be at least %d, got %d", cardcipher.MinRSABits, c.RSABits))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cipher %q", c.Cipher))
	}
	if c.TLS && (c.TLSCert == "" || c.TLSKey == "" || c.TLSCA == "") {
		errs = append(errs, errors.New("tls requires tls_cert, tls_key and tls_ca"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}

// Scheme returns the commitment scheme.
func (c Config) Scheme() commitment.Scheme { return commitment.Scheme(c.Hash) }

// NewCipher builds the configured card cipher.
func (c Config) NewCipher() (cardcipher.KeyedCipher, error) {
	return cardcipher.New(c.Cipher, c.Suite, c.RSABits)
}
