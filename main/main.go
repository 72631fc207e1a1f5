// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/config"
	"github.com/ava-labs/xwallet/daemon"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if cfg.Version {
		fmt.Printf("xwallet@%s\n", daemon.Version)
		os.Exit(0)
	}

	log.Root().SetHandler(log.LvlFilterHandler(cfg.LogLevel, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	if err := run(cfg); err != nil {
		log.Error("wallet exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(cfg, daemon.Backends{})
	if err != nil {
		return err
	}
	if err := d.Reconcile(ctx); err != nil {
		log.Warn("reconciling pending transactions failed", "err", err)
	}

	l, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		_ = d.Shutdown()
		return err
	}
	serveErr := d.Serve(ctx, l)
	if err := d.Shutdown(); err != nil {
		log.Warn("shutdown failed", "err", err)
	}
	return serveErr
}
