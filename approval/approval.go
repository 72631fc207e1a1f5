// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package approval correlates page requests with the user's decision.
//
// A page request that needs the user is parked under a request id until the
// approval surface resolves it, closes its window, or the page goes away.
// Each request is answered exactly once.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	"github.com/google/uuid"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/storage"
	"github.com/ava-labs/xwallet/txs"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Kinds of parked requests.
const (
	KindConnect     = "connect"
	KindSignMessage = "sign-message"
	KindSignPayload = "sign-payload"
	KindTransaction = "transaction"
)

var (
	errUnknownRequest   = errors.New("unknown request id")
	errDuplicateRequest = errors.New("request id already registered")
)

// Response is the envelope a page receives.
type Response struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"errorMessage"`
	Data         interface{} `json:"data"`
}

// Success wraps data in a success envelope.
func Success(data interface{}) Response {
	return Response{Status: StatusSuccess, Data: data}
}

// Failure renders err as the page-facing failure envelope.
func Failure(err error) Response {
	return Response{Status: StatusFailure, ErrorMessage: errs.Message(err)}
}

// Request is what the approval surface is asked to decide.
type Request struct {
	ID        string      `json:"requestId"`
	Kind      string      `json:"kind"`
	Site      string      `json:"site"`
	FavIcon   string      `json:"favIcon,omitempty"`
	From      string      `json:"from,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	CreatedAt int64       `json:"createdAt"`
}

type waiter struct {
	request  Request
	answered bool
	done     chan Response
}

// Broker parks requests until they are answered.
type Broker struct {
	store   *storage.Store
	clock   *mockable.Clock
	timeout time.Duration

	lock    sync.Mutex
	waiters map[string]*waiter

	log log.Logger
}

// NewBroker returns a broker. A zero timeout waits until the page or the
// user gives up.
func NewBroker(store *storage.Store, clock *mockable.Clock, timeout time.Duration) *Broker {
	return &Broker{
		store:   store,
		clock:   clock,
		timeout: timeout,
		waiters: make(map[string]*waiter),
		log:     log.New("module", "approval"),
	}
}

// NewRequestID returns an id of the form <unix-millis>-<random>.
func (b *Broker) NewRequestID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", b.clock.Time().UnixMilli(), random)
}

// Open parks r. The request id is assigned when empty.
func (b *Broker) Open(r Request) (Request, error) {
	if r.ID == "" {
		r.ID = b.NewRequestID()
	}
	r.CreatedAt = b.clock.Time().UnixMilli()

	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.waiters[r.ID]; ok {
		return Request{}, fmt.Errorf("%w: %s", errDuplicateRequest, r.ID)
	}
	b.waiters[r.ID] = &waiter{request: r, done: make(chan Response, 1)}
	b.log.Debug("request opened", "requestId", r.ID, "kind", r.Kind, "site", r.Site)
	return r, nil
}

// Get returns the parked request with id.
func (b *Broker) Get(id string) (Request, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	w, ok := b.waiters[id]
	if !ok || w.answered {
		return Request{}, false
	}
	return w.request, true
}

// Outstanding lists parked requests, oldest first.
func (b *Broker) Outstanding() []Request {
	b.lock.Lock()
	out := make([]Request, 0, len(b.waiters))
	for _, w := range b.waiters {
		if !w.answered {
			out = append(out, w.request)
		}
	}
	b.lock.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Resolve answers id. It reports false when id is not outstanding, which
// means the request was already answered.
func (b *Broker) Resolve(id string, resp Response) bool {
	b.lock.Lock()
	defer b.lock.Unlock()

	w, ok := b.waiters[id]
	if !ok || w.answered {
		b.log.Debug("dropping response for unknown request", "requestId", id, "status", resp.Status)
		return false
	}
	w.answered = true
	w.done <- resp
	return true
}

// Succeed answers id with data.
func (b *Broker) Succeed(id string, data interface{}) bool {
	return b.Resolve(id, Success(data))
}

// Fail answers id with err's message.
func (b *Broker) Fail(id string, err error) bool {
	return b.Resolve(id, Failure(err))
}

// WindowClosed answers id with the window-closed failure and drops any
// transaction queued for it.
func (b *Broker) WindowClosed(id string) error {
	b.Fail(id, errs.NewWindowClosed())
	return b.store.Update(func(tx *storage.Tx) error {
		removed, err := txs.RemovePendingByRequestID(tx, id)
		if removed {
			b.log.Info("dropped pending transaction of closed window", "requestId", id)
		}
		return err
	})
}

// Wait blocks until id is answered. If ctx ends or the timeout passes
// first, the request is closed as if its window was. Each opened request
// is waited on once.
func (b *Broker) Wait(ctx context.Context, id string) (Response, error) {
	b.lock.Lock()
	w, ok := b.waiters[id]
	b.lock.Unlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", errUnknownRequest, id)
	}
	defer func() {
		b.lock.Lock()
		delete(b.waiters, id)
		b.lock.Unlock()
	}()

	var expired <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case resp := <-w.done:
		return resp, nil
	case <-ctx.Done():
	case <-expired:
	}

	if err := b.WindowClosed(id); err != nil {
		b.log.Warn("failed to drop pending transaction", "requestId", id, "err", err)
	}
	// A decision may have landed between the wake-up and the close.
	return <-w.done, nil
}

// Len is the number of outstanding requests.
func (b *Broker) Len() int {
	return len(b.Outstanding())
}
