package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/merge"
	"github.com/ardanlabs/ledger/foundation/blockchain/miner"
	"github.com/ardanlabs/ledger/foundation/blockchain/rpc"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:8332"`
		}
		RPC struct {
			DefaultScheme string        `conf:"default:tcp://"`
			CallTimeout   time.Duration `conf:"default:5s"`
			MaxConcurrent int           `conf:"default:16"`
			RateLimit     float64       `conf:"default:100"`
			RateBurst     int           `conf:"default:200"`
		}
		State struct {
			Host               string        `conf:"default:localhost:8332,help:address peers reach this node on"`
			DataDir            string        `conf:"default:zblock/data/"`
			KnownPeers         []string      `conf:"default:localhost:8333"`
			MergeStrategy      string        `conf:"default:accept-missing"`
			PeerUpdateInterval time.Duration `conf:"default:1m"`
		}
		Accounts struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
		Miner struct {
			Enabled     bool          `conf:"default:false"`
			Beneficiary string        `conf:"help:account name credited with the block reward"`
			Reward      uint32        `conf:"default:50"`
			Difficulty  uint          `conf:"default:5"`
			Interval    time.Duration `conf:"default:5s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "peer to peer ledger node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`  _     _____ ____   ____ _____ ____    _   _  ___  ____  _____ `)
	fmt.Println(` | |   | ____|  _ \ / ___| ____|  _ \  | \ | |/ _ \|  _ \| ____|`)
	fmt.Println(` | |   |  _| | | | | |  _|  _| | |_) | |  \| | | | | | | |  _|  `)
	fmt.Println(` | |___| |___| |_| | |_| | |___|  _ <  | |\  | |_| | |_| | |___ `)
	fmt.Println(` |_____|_____|____/ \____|_____|_| \_\ |_| \_|\___/|____/|_____|`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	if _, err := merge.Retrieve(cfg.State.MergeStrategy); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	// =========================================================================
	// Event Support

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// =========================================================================
	// Database Support

	db, err := database.New(cfg.State.DataDir, ev)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	accts, err := accounts.New(cfg.Accounts.Folder, db.Accounts)
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}

	names, err := accts.Names()
	if err != nil {
		return fmt.Errorf("loading account names: %w", err)
	}
	for address, name := range names {
		log.Infow("startup", "status", "accounts", "name", name, "address", address)
	}

	// =========================================================================
	// Node Support

	st, err := state.New(state.Config{
		Host:               cfg.State.Host,
		Database:           db,
		Scheme:             cfg.RPC.DefaultScheme,
		KnownPeers:         cfg.State.KnownPeers,
		MergeStrategy:      cfg.State.MergeStrategy,
		CallTimeout:        cfg.RPC.CallTimeout,
		MaxConcurrent:      cfg.RPC.MaxConcurrent,
		PeerUpdateInterval: cfg.State.PeerUpdateInterval,
		EvHandler:          ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	rpcServer, err := rpc.NewServer(st, rpc.EventHandler(ev))
	if err != nil {
		return fmt.Errorf("constructing rpc server: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log, st)

	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	muxCfg := handlers.MuxConfig{
		Shutdown:  shutdown,
		Log:       log,
		State:     st,
		Accounts:  accts,
		RPC:       rpcServer,
		Evts:      evts,
		RateLimit: cfg.RPC.RateLimit,
		RateBurst: cfg.RPC.RateBurst,
	}

	// =========================================================================
	// Start Private Service

	// The private api is started before syncing so peers syncing against
	// this node at the same time are answered.
	log.Infow("startup", "status", "initializing V1 private API support")

	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Sync With Peers

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st.Start(ctx)

	// =========================================================================
	// Start Miner

	if cfg.Miner.Enabled {
		var beneficiary string
		if cfg.Miner.Beneficiary != "" {
			key, err := accts.PrivateKey(cfg.Miner.Beneficiary)
			if err != nil {
				return fmt.Errorf("loading beneficiary: %w", err)
			}
			beneficiary = database.PublicKeyToAddress(key.PublicKey)
		}

		mnr, err := miner.New(miner.Config{
			Ledger:      st,
			Beneficiary: beneficiary,
			Reward:      cfg.Miner.Reward,
			Difficulty:  cfg.Miner.Difficulty,
			Interval:    cfg.Miner.Interval,
			EvHandler:   miner.EventHandler(ev),
		})
		if err != nil {
			return fmt.Errorf("constructing miner: %w", err)
		}

		go func() {
			log.Infow("startup", "status", "miner started", "beneficiary", beneficiary)
			mnr.Run(ctx)
		}()
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop mining and abandon any in flight broadcasts.
		cancel()

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
