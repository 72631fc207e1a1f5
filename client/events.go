// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ava-labs/xwallet/events"
)

// EventsPath is where the daemon serves the events websocket.
const EventsPath = "/events"

// Listen delivers wallet events to handle until ctx is done or the wallet
// closes the connection. Events from any other source are dropped.
func Listen(ctx context.Context, uri, origin, source string, handle func(events.Event)) error {
	url := "ws" + strings.TrimPrefix(uri, "http") + EventsPath
	header := http.Header{}
	header.Set("Origin", origin)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if e.Source != source {
			continue
		}
		handle(e)
		if e.Event == events.Uninstall {
			return nil
		}
	}
}
