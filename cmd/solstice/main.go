package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solstice/config"
	"solstice/core/events"
	"solstice/core/types"
	"solstice/native/sale"
	"solstice/native/treasury"
	"solstice/observability/logging"
	"solstice/rpc"
	"solstice/state"
	"solstice/storage"
)

// adminSet authorizes the configured admin address.
type adminSet struct {
	admin [20]byte
	set   bool
}

func (a adminSet) IsAdmin(addr [20]byte) bool {
	return a.set && addr == a.admin
}

// logEmitter writes engine events to the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	l.logger.Info("engine event", args...)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	logger := logging.Setup("solstice", os.Getenv("SOLSTICE_ENV"))

	if err := run(configPath, logger); err != nil {
		logger.Error("daemon exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "solstice"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	ledger := state.NewLedger(manager)
	emitter := logEmitter{logger: logger}

	auth := adminSet{}
	if cfg.Admin != "" {
		admin, err := config.ParseAddress(cfg.Admin)
		if err != nil {
			return err
		}
		auth = adminSet{admin: admin, set: true}
	}

	saleEngine := sale.NewEngine()
	saleEngine.SetState(manager)
	saleEngine.SetLedger(ledger)
	saleEngine.SetAuthorizer(auth)
	saleEngine.SetEmitter(emitter)
	if cfg.RewardsVault != "" {
		vault, err := config.ParseAddress(cfg.RewardsVault)
		if err != nil {
			return err
		}
		saleEngine.SetRewardsVault(vault)
	}

	treasuryEngine := treasury.NewEngine()
	treasuryEngine.SetState(manager)
	treasuryEngine.SetLedger(ledger)
	treasuryEngine.SetEmitter(emitter)
	if cfg.TreasuryVault != "" {
		vault, err := config.ParseAddress(cfg.TreasuryVault)
		if err != nil {
			return err
		}
		treasuryEngine.SetVault(vault, sale.TokenReward)
	}

	if err := applyGenesis(cfg, auth, saleEngine, treasuryEngine, logger); err != nil {
		return err
	}

	server := rpc.NewServer(saleEngine, treasuryEngine)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("rpc listening", "address", cfg.RPCAddress, "network", cfg.NetworkName)
		errCh <- server.Start(cfg.RPCAddress)
	}()

	ops := &http.Server{
		Addr:              cfg.OpsAddress,
		Handler:           opsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops listening", "address", cfg.OpsAddress)
		errCh <- ops.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ops.Shutdown(ctx)
	return nil
}

// applyGenesis initializes the sale and treasury from the config file on first
// boot. Subsequent boots find the state already present and skip it.
func applyGenesis(cfg *config.Config, auth adminSet, saleEngine *sale.Engine, treasuryEngine *treasury.Engine, logger *slog.Logger) error {
	if !auth.set {
		return nil
	}

	if _, err := treasuryEngine.Initialize(auth.admin); err != nil {
		if !errors.Is(err, treasury.ErrAlreadyInitialized) {
			return fmt.Errorf("treasury genesis: %w", err)
		}
	} else {
		logger.Info("treasury initialized", "admin", cfg.Admin)
	}

	if len(cfg.Sale.Phases) == 0 {
		return nil
	}
	start, cap, phases, err := cfg.Sale.Genesis()
	if err != nil {
		return err
	}
	if _, err := saleEngine.InitializeSale(auth.admin, start, cap, phases); err != nil {
		if !errors.Is(err, sale.ErrDuplicateInitialization) {
			return fmt.Errorf("sale genesis: %w", err)
		}
		return nil
	}
	logger.Info("sale initialized", "start", start, "cap", cap.String(), "phases", len(phases))

	if cfg.DistributionAccount != "" {
		distribution, err := config.ParseAddress(cfg.DistributionAccount)
		if err != nil {
			return err
		}
		if err := saleEngine.MintInitialSupply(auth.admin, distribution); err != nil {
			if !errors.Is(err, sale.ErrSupplyMinted) {
				return fmt.Errorf("supply genesis: %w", err)
			}
			return nil
		}
		logger.Info("genesis supply minted", "distribution", cfg.DistributionAccount)
	}
	return nil
}

func opsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
