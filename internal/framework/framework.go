package framework

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/flare-foundation/go-flare-common/pkg/logger"
	indexerconfig "github.com/flare-foundation/verifier-indexer-framework/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/flare-foundation/evm-address-indexer/internal/api"
	"github.com/flare-foundation/evm-address-indexer/internal/config"
	"github.com/flare-foundation/evm-address-indexer/internal/crawler"
	"github.com/flare-foundation/evm-address-indexer/internal/database"
	"github.com/flare-foundation/evm-address-indexer/internal/etherscan"
	"github.com/flare-foundation/evm-address-indexer/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

type CLIArgs struct {
	ConfigFile string `arg:"--config,env:CONFIG_FILE" default:"config.toml"`
}

func Run() error {
	var args CLIArgs
	arg.MustParse(&args)

	return runWithArgs(args)
}

func runWithArgs(args CLIArgs) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger.Set(cfg.Logger)
	defer logger.SyncFileLogger()

	db, err := database.New(&cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := saveVersion(ctx, db, cfg); err != nil {
		return err
	}

	client, err := etherscan.New(etherscan.Config{
		BaseURL:           cfg.Etherscan.BaseURL,
		APIKey:            cfg.Etherscan.APIKey,
		Timeout:           cfg.Etherscan.Timeout(),
		RequestsPerSecond: cfg.Etherscan.RequestsPerSecond,
	})
	if err != nil {
		return err
	}

	c := crawler.New(crawlerConfig(cfg), client, crawler.NewStores(db))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.New(schedulerConfig(cfg), c).Run(ctx)
	}()

	if cfg.Server.Enabled {
		gin.SetMode(gin.ReleaseMode)
		err = serve(ctx, cfg.Server.ListenAddress, api.NewRouter(c, db.Ping))
	} else {
		<-ctx.Done()
	}

	stop()
	logger.Info("waiting for the scheduler to finish")
	wg.Wait()

	return err
}

func loadConfig(args CLIArgs) (*config.Config, error) {
	cfg := config.DefaultConfig
	if err := indexerconfig.ReadFile(args.ConfigFile, &cfg); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", args.ConfigFile)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := config.CheckParameters(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func crawlerConfig(cfg *config.Config) crawler.Config {
	return crawler.Config{
		Paginator: etherscan.Paginator{
			PageSize: cfg.Etherscan.PageSize,
			Delay:    cfg.Etherscan.DelayBetweenPages(),
		},
		DefaultStartBlock:  cfg.Etherscan.DefaultStartBlock,
		CategoryDelay:      cfg.Crawler.CategoryDelay(),
		ParallelCategories: cfg.Crawler.ParallelCategories,
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Addresses:    cfg.Crawler.Addresses,
		Interval:     cfg.Crawler.Interval(),
		InitialDelay: cfg.Crawler.InitialDelay(),
	}
}

// serve runs the HTTP API until ctx is cancelled, then shuts it down
// gracefully.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server")
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func saveVersion(ctx context.Context, db *database.DB, cfg *config.Config) error {
	version := database.InitVersion()
	version.DefaultStartBlock = cfg.Etherscan.DefaultStartBlock
	version.PageSize = cfg.Etherscan.PageSize

	buildVersion, err := indexerconfig.ReadBuildVersion()
	if err != nil {
		logger.Warn("failed to read the project build info")
	} else {
		version.GitTag = buildVersion.GitTag
		version.GitHash = buildVersion.GitHash
		version.BuildDate = buildVersion.BuildDate
	}

	return db.SaveVersion(ctx, version)
}
