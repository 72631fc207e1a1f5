// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package daemon assembles the wallet and serves it over HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/ava-labs/avalanchego/version"

	"github.com/ava-labs/xwallet/approval"
	"github.com/ava-labs/xwallet/config"
	"github.com/ava-labs/xwallet/dispatch"
	"github.com/ava-labs/xwallet/events"
	"github.com/ava-labs/xwallet/market"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/service"
	"github.com/ava-labs/xwallet/sites"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/vm"
)

const (
	// EventsPath serves the events websocket.
	EventsPath = "/events"
	// MetricsPath serves prometheus metrics.
	MetricsPath = "/metrics"

	dbName          = "wallet"
	namespace       = "xwallet"
	shutdownTimeout = 10 * time.Second
)

var (
	Version = &version.Semantic{Major: 0, Minor: 1, Patch: 0}

	errNilConfig = errors.New("nil config")
)

// Backends are the outside services the wallet talks to. Zero fields are
// replaced by the network implementations.
type Backends struct {
	DB     database.Database
	Dialer providers.Dialer
	Market vm.Market
}

// Daemon is an assembled wallet.
type Daemon struct {
	cfg *config.Config

	store    *storage.Store
	events   *events.Registry
	hub      *events.Hub
	wallet   *service.Wallet
	registry *prometheus.Registry
	handler  http.Handler

	log log.Logger
}

// OpenDB opens the database cfg names.
func OpenDB(cfg *config.Config, reg prometheus.Registerer) (database.Database, error) {
	switch cfg.DBType {
	case config.MemDB:
		return memdb.New(), nil
	case config.LevelDB:
		return leveldb.New(filepath.Join(cfg.DataDir, dbName), nil, logging.NoLog{}, "db", reg)
	default:
		return nil, fmt.Errorf("unknown db type %q", cfg.DBType)
	}
}

func New(cfg *config.Config, b Backends) (*Daemon, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	d := &Daemon{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		log:      log.New("module", "daemon"),
	}

	if b.DB == nil {
		db, err := OpenDB(cfg, prometheus.WrapRegistererWithPrefix(namespace+"_", d.registry))
		if err != nil {
			return nil, fmt.Errorf("couldn't open database: %w", err)
		}
		b.DB = db
	}
	if b.Dialer == nil {
		b.Dialer = providers.NetworkDialer{}
	}
	if b.Market == nil {
		b.Market = market.New(cfg.Market)
	}

	tokens, err := vm.NewTokenCache(prometheus.WrapRegistererWithPrefix(namespace+"_", d.registry))
	if err != nil {
		return nil, err
	}

	d.store = storage.New(b.DB)
	clock := &mockable.Clock{}
	factory := vm.NewFactory(&vm.Config{
		Store:            d.store,
		Registry:         cfg.Registry(),
		Dialer:           b.Dialer,
		Market:           b.Market,
		Clock:            clock,
		Tokens:           tokens,
		ConfirmDelay:     cfg.ConfirmDelay,
		CallConfirmDelay: cfg.CallConfirmDelay,
		L1XFeeLimit:      cfg.L1XFeeLimit,
	})

	d.events = events.NewRegistry(cfg.ExtensionID)
	d.hub = events.NewHub(d.events)

	broker := approval.NewBroker(d.store, clock, cfg.ApprovalTimeout)
	registry := sites.New(d.store, d.events, clock)
	dispatcher, err := dispatch.New(d.store, factory, broker, registry, prometheus.WrapRegistererWithPrefix(namespace+"_", d.registry))
	if err != nil {
		return nil, err
	}

	d.wallet = &service.Wallet{
		Store:      d.store,
		Factory:    factory,
		Sites:      registry,
		Broker:     broker,
		Dispatcher: dispatcher,
		Events:     d.events,
	}

	handlers, err := service.CreateHandlers(d.wallet)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.Handle(path, handler)
	}
	mux.Handle(EventsPath, d.hub)
	mux.Handle(MetricsPath, promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	d.handler = mux
	return d, nil
}

// Handler serves every endpoint of the wallet.
func (d *Daemon) Handler() http.Handler { return d.handler }

// Wallet exposes the assembled components.
func (d *Daemon) Wallet() *service.Wallet { return d.wallet }

// Events is the registry pages subscribe to.
func (d *Daemon) Events() *events.Registry { return d.events }

// Reconcile drops pending transactions that already landed. It runs once
// before serving.
func (d *Daemon) Reconcile(ctx context.Context) error {
	dropped, err := d.wallet.Dispatcher.Reconcile(ctx)
	if err != nil {
		return err
	}
	if dropped > 0 {
		d.log.Info("dropped landed pending transactions", "count", dropped)
	}
	return nil
}

// Serve serves on l until ctx is done, then shuts the server down.
func (d *Daemon) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		d.log.Info("serving wallet API", "address", l.Addr().String())
		serveErr <- server.Serve(l)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	// Pending page requests are answered as closed once their contexts end.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = server.Close()
	}
	if serveErr := <-serveErr; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	return err
}

// Shutdown notifies pages and closes the store.
func (d *Daemon) Shutdown() error {
	d.events.Close()
	d.hub.Wait()

	errs := wrappers.Errs{}
	errs.Add(d.store.Close())
	return errs.Err
}
