package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/djvang/pdftron-sign-app/api/custodyhandler"
	"github.com/djvang/pdftron-sign-app/api/ledgerhandler"
	"github.com/djvang/pdftron-sign-app/cmd/flags"
	"github.com/djvang/pdftron-sign-app/cmd/signcommon"
	"github.com/djvang/pdftron-sign-app/config"
	"github.com/djvang/pdftron-sign-app/custody"
	"github.com/djvang/pdftron-sign-app/httpserver"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "signd",
		Usage: "Serve the contract ledger and a custody node",
		Flags: append(append(flags.BackendFlags, flags.ServerFlags...), flags.LogFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				logger.Error("Invalid configuration", "err", err)
				return err
			}

			if cfg.Ledger.Backend == config.LedgerRemote {
				logger.Error("signd hosts the ledger and cannot use a remote one")
				return cli.Exit("ledger backend must be memory or postgres", 1)
			}

			ledger, err := signcommon.SetupLedger(cfg.Ledger, nil, logger)
			if err != nil {
				logger.Error("Failed to open ledger", "err", err)
				return err
			}

			handlers := []httpserver.RouteRegistrar{ledgerhandler.NewHandler(ledger, cfg.Custody.ProofMaxAge, logger)}
			if cfg.Custody.Serve {
				logger.Info("Serving custody node", "name", cfg.Custody.NodeName)
				node := custody.NewLocalNode(cfg.Custody.NodeName, cfg.Custody.ProofMaxAge)
				handlers = append(handlers, custodyhandler.NewHandler(node, logger))
			}

			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cfg), handlers...)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop", "addr", cfg.ListenAddr)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
