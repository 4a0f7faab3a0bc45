package flags

import (
	"log/slog"
	"time"

	"github.com/djvang/pdftron-sign-app/common"
	"github.com/djvang/pdftron-sign-app/config"
	"github.com/djvang/pdftron-sign-app/httpserver"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, cfg *config.Config) *httpserver.HTTPServerConfig {
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// LoadConfig reads the config file if one is given, then applies every flag
// set on the command line.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := cCtx.String(ConfigFileFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cCtx.IsSet(ListenAddrFlag.Name) {
		cfg.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		cfg.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(StorageFlag.Name) {
		cfg.Storage.URIs = cCtx.StringSlice(StorageFlag.Name)
	}
	if cCtx.IsSet(LedgerBackendFlag.Name) {
		cfg.Ledger.Backend = cCtx.String(LedgerBackendFlag.Name)
	}
	if cCtx.IsSet(LedgerDSNFlag.Name) {
		cfg.Ledger.DSN = cCtx.String(LedgerDSNFlag.Name)
	}
	if cCtx.IsSet(LedgerURLFlag.Name) {
		cfg.Ledger.URL = cCtx.String(LedgerURLFlag.Name)
	}
	if cCtx.IsSet(CustodyNodesFlag.Name) {
		cfg.Custody.Nodes = cCtx.StringSlice(CustodyNodesFlag.Name)
	}
	if cCtx.IsSet(CustodySRVFlag.Name) {
		cfg.Custody.SRV = cCtx.String(CustodySRVFlag.Name)
	}
	if cCtx.IsSet(CustodyThresholdFlag.Name) {
		cfg.Custody.Threshold = cCtx.Int(CustodyThresholdFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var ConfigFileFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"SIGND_CONFIG"},
	Usage:   "path to a YAML config file; flags override its values",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var StorageFlag = &cli.StringSliceFlag{
	Name:  "storage",
	Usage: "content store URI (file://, ipfs://, s3://, vault://, badger://); repeat for fallbacks",
}

var LedgerBackendFlag = &cli.StringFlag{
	Name:  "ledger",
	Value: config.LedgerMemory,
	Usage: "ledger backend: memory, postgres or remote",
}
var LedgerDSNFlag = &cli.StringFlag{
	Name:    "ledger-dsn",
	EnvVars: []string{"SIGND_LEDGER_DSN"},
	Usage:   "postgres DSN for the postgres ledger backend",
}
var LedgerURLFlag = &cli.StringFlag{
	Name:  "ledger-url",
	Value: "http://127.0.0.1:8080",
	Usage: "ledger service URL for the remote ledger backend",
}

var CustodyNodesFlag = &cli.StringSliceFlag{
	Name:  "custody-node",
	Usage: "custody node URL; repeat for each node",
}
var CustodySRVFlag = &cli.StringFlag{
	Name:  "custody-srv",
	Usage: "DNS SRV name listing custody nodes, used when no custody-node is given",
}
var CustodyThresholdFlag = &cli.IntFlag{
	Name:  "custody-threshold",
	Value: 1,
	Usage: "number of custody nodes needed to release a key",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "signd",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var BackendFlags = []cli.Flag{
	ConfigFileFlag,
	StorageFlag,
	LedgerBackendFlag,
	LedgerDSNFlag,
	LedgerURLFlag,
	CustodyNodesFlag,
	CustodySRVFlag,
	CustodyThresholdFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
