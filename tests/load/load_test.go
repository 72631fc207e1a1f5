// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// load implements the load tests.
package load_test

import (
	"context"
	"flag"
	"fmt"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	ginkgo "github.com/onsi/ginkgo/v2"
	"github.com/onsi/ginkgo/v2/formatter"
	"github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database/memdb"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/client"
	"github.com/ava-labs/xwallet/config"
	"github.com/ava-labs/xwallet/daemon"
	"github.com/ava-labs/xwallet/providers/providerstest"
	"github.com/ava-labs/xwallet/service"
	"github.com/ava-labs/xwallet/sites"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
	"github.com/ava-labs/xwallet/vm/vmtest"
)

func TestLoad(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "xwallet load test suites")
}

var (
	requestTimeout time.Duration
	pages          int
	transfers      int
)

func init() {
	flag.DurationVar(
		&requestTimeout,
		"request-timeout",
		2*time.Minute,
		"timeout for every page to finish",
	)
	flag.IntVar(
		&pages,
		"pages",
		8,
		"number of concurrently connected pages",
	)
	flag.IntVar(
		&transfers,
		"transfers",
		25,
		"transfers each page requests",
	)
}

const recipient = "0x3333333333333333333333333333333333333333"

var (
	wallet *daemon.Daemon
	server *httptest.Server
	node   *providerstest.L1X
	sender string
)

var _ = ginkgo.BeforeSuite(func() {
	node = providerstest.NewL1X()

	var err error
	wallet, err = daemon.New(&config.Config{
		DBType:      config.MemDB,
		ExtensionID: "xwallet-load",
	}, daemon.Backends{
		DB:     memdb.New(),
		Dialer: &providerstest.Dialer{Node: node},
		Market: vmtest.StaticMarket{},
	})
	gomega.Expect(err).Should(gomega.BeNil())

	w := wallet.Wallet()
	gomega.Expect(w.Store.Set(storage.Mnemonic, vmtest.Mnemonic)).Should(gomega.BeNil())
	v, err := w.Factory.New(chains.L1X, "", "1")
	gomega.Expect(err).Should(gomega.BeNil())
	account, err := v.ImportPrivateKey(context.Background(), vmtest.L1XKey, "load")
	gomega.Expect(err).Should(gomega.BeNil())
	sender = account.PublicKey

	for i := 0; i < pages; i++ {
		err := w.Sites.Connect(sites.Site{URL: origin(i)}, []string{sender})
		gomega.Expect(err).Should(gomega.BeNil())
	}

	server = httptest.NewServer(wallet.Handler())
	outf("{{green}}wallet serving at:{{/}} %s\n", server.URL)
})

var _ = ginkgo.AfterSuite(func() {
	outf("{{red}}shutting down wallet{{/}}\n")
	server.Close()
	gomega.Expect(wallet.Shutdown()).Should(gomega.BeNil())
})

func origin(i int) string {
	return "https://page-" + strconv.Itoa(i) + ".example"
}

var _ = ginkgo.Describe("[TransferNativeToken]", func() {
	ginkgo.It("lands every approved transfer", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		total := pages * transfers
		start := time.Now()

		producers, pctx := errgroup.WithContext(ctx)
		for i := 0; i < pages; i++ {
			cli := client.New(server.URL, origin(i))
			producers.Go(func() error {
				defer ginkgo.GinkgoRecover()

				for j := 0; j < transfers; j++ {
					_, err := cli.TransferNativeToken(pctx, &service.TransferArgs{
						From:     sender,
						Receiver: recipient,
						Value:    service.Value(strconv.Itoa(j + 1)),
					})
					if err != nil {
						return err
					}
				}
				return nil
			})
		}

		// The approval surface approves whatever is pending until every
		// page is answered.
		approved := make(chan struct{})
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(approved)
			return producers.Wait()
		})
		g.Go(func() error {
			defer ginkgo.GinkgoRecover()

			surface := client.NewWallet(server.URL)
			for {
				select {
				case <-approved:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				pending, err := surface.ListPending(gctx)
				if err != nil {
					return err
				}
				for _, t := range pending {
					if _, err := surface.Approve(gctx, t.ID); err != nil {
						log.Debug("approve raced", "id", t.ID, "err", err)
					}
				}
				time.Sleep(time.Millisecond)
			}
		})
		gomega.Ω(g.Wait()).Should(gomega.BeNil())

		elapsed := time.Since(start)
		log.Info("performance",
			"transfers", total,
			"elapsed", elapsed,
			"tps", float64(total)/elapsed.Seconds(),
		)

		gomega.Ω(node.Submitted()).Should(gomega.HaveLen(total))

		var history []*txs.Transaction
		err := wallet.Wallet().Store.View(func(tx *storage.Tx) error {
			var err error
			history, err = txs.History(tx)
			return err
		})
		gomega.Ω(err).Should(gomega.BeNil())
		gomega.Ω(history).Should(gomega.HaveLen(total))

		pending, err := wallet.Wallet().Dispatcher.Pending()
		gomega.Ω(err).Should(gomega.BeNil())
		gomega.Ω(pending).Should(gomega.BeEmpty())
	})
})

// Outputs to stdout.
//
// e.g.,
//
//	Out("{{green}}{{bold}}hi there %q{{/}}", "aa")
//	Out("{{magenta}}{{bold}}hi therea{{/}} {{cyan}}{{underline}}b{{/}}")
//
// ref.
// https://github.com/onsi/ginkgo/blob/v2.0.0/formatter/formatter.go#L52-L73
func outf(format string, args ...interface{}) {
	s := formatter.F(format, args...)
	fmt.Fprint(formatter.ColorableStdOut, s)
}
