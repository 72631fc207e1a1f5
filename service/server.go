// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/utils/wrappers"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

// Endpoint paths the daemon serves the services on.
const (
	PagePath     = "/rpc"
	InternalPath = "/internal"
	StaticPath   = "/static"
)

// NewHandler returns a JSON-RPC handler serving service under name.
func NewHandler(name string, service interface{}) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(service, name)
}

// CreateHandlers returns the handlers keyed by the path they are served on.
func CreateHandlers(w *Wallet) (map[string]http.Handler, error) {
	var (
		errs     = wrappers.Errs{}
		handlers = make(map[string]http.Handler, 3)
	)
	register := func(path, name string, service interface{}) {
		handler, err := NewHandler(name, service)
		errs.Add(err)
		handlers[path] = handler
	}
	register(PagePath, Name, NewService(w))
	register(InternalPath, WalletName, NewWalletService(w))
	register(StaticPath, StaticName, CreateStaticService())
	return handlers, errs.Err
}
