package flags

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/djvang/pdftron-sign-app/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range append(append([]cli.Flag{}, BackendFlags...), ServerFlags...) {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(app, set, nil)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(newContext(t))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: 0.0.0.0:9000
ledger:
  backend: postgres
  dsn: postgres://file
custody:
  nodes: [http://a, http://b]
  threshold: 2
`), 0o600))

	cfg, err := LoadConfig(newContext(t,
		"--config", path,
		"--ledger-dsn", "postgres://flag",
		"--storage", "file:///var/lib/signd",
		"--storage", "ipfs://127.0.0.1:5001",
	))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, config.LedgerPostgres, cfg.Ledger.Backend)
	assert.Equal(t, "postgres://flag", cfg.Ledger.DSN)
	assert.Equal(t, []string{"file:///var/lib/signd", "ipfs://127.0.0.1:5001"}, cfg.Storage.URIs)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Custody.Nodes)
	assert.Equal(t, 2, cfg.Custody.Threshold)
}

func TestLoadConfigValidates(t *testing.T) {
	_, err := LoadConfig(newContext(t, "--ledger", "postgres"))
	assert.ErrorContains(t, err, "dsn")

	_, err = LoadConfig(newContext(t, "--custody-node", "http://a", "--custody-threshold", "3"))
	assert.ErrorContains(t, err, "exceeds")
}
