// Package signcommon builds the collaborators shared by the signing commands
// from a loaded config.
package signcommon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/djvang/pdftron-sign-app/accesscontrol"
	"github.com/djvang/pdftron-sign-app/api/custodyhandler"
	"github.com/djvang/pdftron-sign-app/api/ledgerhandler"
	"github.com/djvang/pdftron-sign-app/config"
	"github.com/djvang/pdftron-sign-app/custody"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/ledger"
	"github.com/djvang/pdftron-sign-app/metrics"
	"github.com/djvang/pdftron-sign-app/policy"
	"github.com/djvang/pdftron-sign-app/reconstruct"
	"github.com/djvang/pdftron-sign-app/storage"
)

// SetupLedger opens the configured ledger backend. proof, when set, signs the
// steps appended through a remote ledger.
func SetupLedger(cfg config.LedgerConfig, proof *interfaces.AuthProof, log *slog.Logger) (interfaces.Ledger, error) {
	switch cfg.Backend {
	case config.LedgerMemory:
		log.Warn("Using in-memory ledger, contracts are lost on restart")
		return ledger.NewMemoryLedger(), nil
	case config.LedgerPostgres:
		log.Info("Connecting to postgres ledger")
		l, err := ledger.NewPostgresLedger(cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.LedgerRemote:
		log.Info("Using remote ledger", "url", cfg.URL)
		client := ledgerhandler.NewClient(cfg.URL)
		if proof != nil {
			client = client.WithAuthProof(*proof)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// SetupStore creates the content store from the configured URIs, wrapped in
// retries when enabled.
func SetupStore(cfg config.StorageConfig, log *slog.Logger) (interfaces.StorageBackend, error) {
	store, err := storage.NewStorageBackendFactory(log).FromURIs(cfg.URIs)
	if err != nil {
		return nil, fmt.Errorf("could not create content store: %w", err)
	}
	if cfg.RetryMaxElapsed > 0 {
		store = storage.NewRetryingBackend(store, cfg.RetryMaxElapsed, log)
	}
	return store, nil
}

// SetupCustody connects to the configured custody nodes, discovering them
// through DNS SRV when no node is listed.
func SetupCustody(ctx context.Context, cfg config.CustodyConfig, log *slog.Logger) (*custody.Network, error) {
	urls := cfg.Nodes
	if len(urls) == 0 && cfg.SRV != "" {
		discovered, err := custody.ResolveNodeURLs(ctx, cfg.SRV, cfg.Resolver, "http")
		if err != nil {
			return nil, err
		}
		log.Info("Discovered custody nodes", "srv", cfg.SRV, "count", len(discovered))
		urls = discovered
	}
	if len(urls) == 0 {
		return nil, errors.New("no custody nodes configured")
	}

	nodes := make([]interfaces.CustodyNode, 0, len(urls))
	for _, u := range urls {
		nodes = append(nodes, custodyhandler.NewClient(u))
	}

	network, err := custody.NewNetwork(nodes, cfg.Threshold, log)
	if err != nil {
		return nil, err
	}
	if err := network.Connect(ctx); err != nil {
		return nil, err
	}
	return network, nil
}

// SetupEngine wires a reconstruction engine. network may be nil when only
// password and unencrypted contracts are handled.
func SetupEngine(l interfaces.Ledger, store interfaces.StorageBackend, network interfaces.CustodyNetwork, m *metrics.Signing, log *slog.Logger) *reconstruct.Engine {
	var envelopes policy.EnvelopeCrypto
	if network != nil {
		envelopes = accesscontrol.NewModule(network, accesscontrol.DefaultRetryPolicy, log)
	}
	return reconstruct.NewEngine(l, store, policy.NewEngine(envelopes, m, log), m, log)
}
