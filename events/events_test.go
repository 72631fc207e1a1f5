// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	require := require.New(t)
	r := NewRegistry("ext-id")

	var got []Event
	unsubscribe := r.Subscribe(ObserverFunc(func(e Event) { got = append(got, e) }))
	require.Equal(1, r.Len())

	r.Emit(Disconnect, map[string][]string{"https://a.com": {"0xabc"}})
	require.Len(got, 1)
	require.Equal(Disconnect, got[0].Event)
	require.Equal("ext-id", got[0].Source)

	unsubscribe()
	unsubscribe()
	require.Zero(r.Len())
	r.Emit(AccountChanged, nil)
	require.Len(got, 1)
}

func TestRegistryClose(t *testing.T) {
	require := require.New(t)
	r := NewRegistry("ext-id")

	var got []string
	r.Subscribe(ObserverFunc(func(e Event) { got = append(got, e.Event) }))
	r.Close()
	require.Equal([]string{Uninstall}, got)
	require.Zero(r.Len())

	r.Subscribe(ObserverFunc(func(e Event) { got = append(got, e.Event) }))
	r.Emit(Disconnect, nil)
	require.Equal([]string{Uninstall}, got)
}

func TestHubPushesEvents(t *testing.T) {
	require := require.New(t)
	r := NewRegistry("ext-id")
	srv := httptest.NewServer(NewHub(r))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(err)
	defer conn.Close()

	require.Eventually(func() bool { return r.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	r.Emit(Disconnect, map[string][]string{"https://a.com": {"0xabc"}})

	require.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var e struct {
		Event  string              `json:"event"`
		Data   map[string][]string `json:"data"`
		Source string              `json:"source"`
	}
	require.NoError(conn.ReadJSON(&e))
	require.Equal(Disconnect, e.Event)
	require.Equal("ext-id", e.Source)
	require.Equal([]string{"0xabc"}, e.Data["https://a.com"])

	require.NoError(conn.Close())
	require.Eventually(func() bool { return r.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}
