package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/fairdeal/commitment"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, 52, c.DeckSize)
	require.Equal(t, []int{25, 27}, c.Steps)
	require.Equal(t, commitment.DefaultSecretSize, c.SecretSize)
	require.Equal(t, commitment.SHA256, c.Scheme())
	require.Equal(t, 30*time.Second, c.Timeout)

	cipher, err := c.NewCipher()
	require.NoError(t, err)
	require.Contains(t, cipher.Name(), "ecies")
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fairdeal.yaml")
	content := []byte(`deck_size: 4
hash: sha3-256
timeout: 5s
peers:
  - localhost:4000
  - localhost:4001
`)
	require.NoError(t, os.WriteFile(file, content, 0o600))

	c, err := Load(viper.New(), file)
	require.NoError(t, err)
	require.Equal(t, 4, c.DeckSize)
	require.Equal(t, []int{1, 3}, c.Steps)
	require.Equal(t, commitment.SHA3_256, c.Scheme())
	require.Equal(t, 5*time.Second, c.Timeout)
	require.Equal(t, []string{"localhost:4000", "localhost:4001"}, c.Peers)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fairdeal.yaml")
	require.NoError(t, os.WriteFile(file, []byte("deck_size: 4\n"), 0o600))
	t.Setenv("FAIRDEAL_DECK_SIZE", "8")

	c, err := Load(viper.New(), file)
	require.NoError(t, err)
	require.Equal(t, 8, c.DeckSize)
	require.Equal(t, []int{3, 5}, c.Steps)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("FAIRDEAL_DECK_SIZE", "8")
	v := viper.New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, RegisterFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--deck-size=6", "--cipher=rsa-oaep"}))

	c, err := Load(v, "")
	require.NoError(t, err)
	require.Equal(t, 6, c.DeckSize)
	require.Equal(t, "rsa-oaep", c.Cipher)
}

func TestValidate(t *testing.T) {
	valid, err := Load(viper.New(), "")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"deck too small":   func(c *Config) { c.DeckSize = 1 },
		"deck too large":   func(c *Config) { c.DeckSize = 300 },
		"step not coprime": func(c *Config) { c.Steps = []int{26} },
		"short secret":     func(c *Config) { c.SecretSize = 8 },
		"negative batch":   func(c *Config) { c.Batch = -1 },
		"unknown hash":     func(c *Config) { c.Hash = "md5" },
		"unknown cipher":   func(c *Config) { c.Cipher = "xor" },
		"weak rsa": func(c *Config) {
			c.Cipher = "rsa-oaep"
			c.RSABits = 1024
		},
		"tls without files": func(c *Config) { c.TLS = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			c.Steps = append([]int(nil), valid.Steps...)
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
