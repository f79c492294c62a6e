package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quickex/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quickex.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendLevelDB, cfg.Backend)
	require.Equal(t, int64(120), cfg.Auth.MaxSkewSeconds)
	require.Len(t, cfg.Genesis.Tokens, 1)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, reloaded.ListenAddress)
	require.Equal(t, cfg.Genesis.Tokens, reloaded.Genesis.Tokens)
}

func TestLoadParsesGenesis(t *testing.T) {
	var raw [20]byte
	raw[0] = 0x42
	account := crypto.AccountAddress(raw).String()
	path := filepath.Join(t.TempDir(), "quickex.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
Backend = "memory"

[Auth]
MaxSkewSeconds = 30

[Genesis]
Admin = "` + account + `"

[[Genesis.Tokens]]
Symbol = "qxt"
Name = "QuickEx"
Decimals = 6

[[Genesis.Balances]]
Account = "` + account + `"
Token = "QXT"
Amount = "1000000"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, BackendMemory, cfg.Backend)
	require.Equal(t, int64(30), cfg.Auth.MaxSkewSeconds)
	require.Equal(t, 4096, cfg.Auth.ReplayCacheSize)
	require.Equal(t, account, cfg.Genesis.Admin)
	require.Len(t, cfg.Genesis.Balances, 1)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "Bogus = 1\n",
		"unknown backend": "Backend = \"redis\"\n",
		"bad admin":       "Backend = \"memory\"\n[Genesis]\nAdmin = \"nope\"\n",
		"unlisted token": `Backend = "memory"
[[Genesis.Balances]]
Account = "` + crypto.AccountAddress([20]byte{1}).String() + `"
Token = "ABC"
Amount = "1"
`,
		"telemetry without signals": "Backend = \"memory\"\n[Telemetry]\nEnabled = true\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quickex.toml")
			require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 42 ")
	require.NoError(t, err)
	require.Equal(t, "42", v.String())
	_, err = ParseAmount("-1")
	require.Error(t, err)
	_, err = ParseAmount("1.5")
	require.Error(t, err)
}

func TestTelemetryEndpointDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quickex.toml")
	contents := "Backend = \"memory\"\n[Telemetry]\nEnabled = true\nTraces = true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	require.False(t, cfg.Telemetry.Metrics)
}
