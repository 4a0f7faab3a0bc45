// Package config loads the signd service configuration from YAML. Every
// value has a default and a matching command line flag; flags that are set
// explicitly override the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerRemote   = "remote"
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Storage StorageConfig `yaml:"storage"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Custody CustodyConfig `yaml:"custody"`
}

type StorageConfig struct {
	// URIs are tried in order on fetch; stores go to every backend.
	URIs []string `yaml:"uris"`
	// RetryMaxElapsed bounds retries of transient store failures. Zero disables retries.
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
}

type LedgerConfig struct {
	// Backend is one of memory, postgres or remote.
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
	URL     string `yaml:"url"`
}

type CustodyConfig struct {
	// Serve exposes an in-process custody node on the API listener.
	Serve       bool          `yaml:"serve"`
	NodeName    string        `yaml:"node_name"`
	ProofMaxAge time.Duration `yaml:"proof_max_age"`

	// Nodes and SRV select the network used by clients.
	Nodes     []string `yaml:"nodes,omitempty"`
	SRV       string   `yaml:"srv"`
	// Resolver is the DNS server for SRV lookups; empty uses the local stub.
	Resolver  string   `yaml:"resolver"`
	Threshold int      `yaml:"threshold"`
}

func Default() *Config {
	return &Config{
		ListenAddr:  "127.0.0.1:8080",
		MetricsAddr: "127.0.0.1:8090",
		Storage: StorageConfig{
			URIs:            []string{"badger://memory"},
			RetryMaxElapsed: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			Backend: LedgerMemory,
		},
		Custody: CustodyConfig{
			Serve:       true,
			NodeName:    "node-0",
			ProofMaxAge: 24 * time.Hour,
			Threshold:   1,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Storage.URIs) == 0 {
		return errors.New("at least one storage URI is required")
	}

	switch c.Ledger.Backend {
	case LedgerMemory:
	case LedgerPostgres:
		if c.Ledger.DSN == "" {
			return errors.New("ledger dsn is required for the postgres backend")
		}
	case LedgerRemote:
		if c.Ledger.URL == "" {
			return errors.New("ledger url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	if c.Custody.Threshold < 1 {
		return fmt.Errorf("custody threshold must be positive, got %d", c.Custody.Threshold)
	}
	if n := len(c.Custody.Nodes); n > 0 && c.Custody.Threshold > n {
		return fmt.Errorf("custody threshold %d exceeds %d nodes", c.Custody.Threshold, n)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
