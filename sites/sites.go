// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sites tracks which accounts each web origin may act for.
//
// A site whose account list is empty is known but disconnected, which is
// different from a site with no record. Authorization fails closed: an
// origin without a record is never connected.
package sites

import (
	"strings"

	"github.com/ava-labs/avalanchego/utils/timer/mockable"
	mapset "github.com/deckarep/golang-set/v2"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/accounts"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/events"
	"github.com/ava-labs/xwallet/providers"
	"github.com/ava-labs/xwallet/storage"
)

// Site is one origin's connection record.
type Site struct {
	URL               string            `json:"url"`
	FavIcon           string            `json:"favIcon"`
	ConnectedAt       int64             `json:"connectedAt"`
	Permissions       []string          `json:"permissions"`
	L1XProviderConfig *providers.Attrib `json:"l1xProviderConfig,omitempty"`
	Accounts          []string          `json:"accounts"`
}

func (s Site) clone() Site {
	s.Permissions = append([]string{}, s.Permissions...)
	s.Accounts = append([]string{}, s.Accounts...)
	if s.L1XProviderConfig != nil {
		attrib := *s.L1XProviderConfig
		s.L1XProviderConfig = &attrib
	}
	return s
}

// has reports whether publicKey is one of the site's accounts.
func (s Site) has(publicKey string) bool {
	for _, a := range s.Accounts {
		if accounts.SameAddress(a, publicKey) {
			return true
		}
	}
	return false
}

// Registry is the store-backed set of site connections. Every mutation is
// one store update; accounts that lose access are announced with a
// DISCONNECT event.
type Registry struct {
	store   *storage.Store
	emitter events.Emitter
	clock   *mockable.Clock

	log log.Logger
}

func New(store *storage.Store, emitter events.Emitter, clock *mockable.Clock) *Registry {
	return &Registry{
		store:   store,
		emitter: emitter,
		clock:   clock,
		log:     log.New("module", "sites"),
	}
}

func load(tx *storage.Tx) ([]Site, error) {
	var sites []Site
	_, err := tx.Get(storage.ConnectedSites, &sites)
	return sites, err
}

func find(sites []Site, origin string) int {
	for i, s := range sites {
		if s.URL != "" && s.URL == origin {
			return i
		}
	}
	return -1
}

// update applies fn to the stored list and announces removed accounts once
// the write has committed.
func (r *Registry) update(fn func([]Site) ([]Site, error)) error {
	var before, after []Site
	err := r.store.Update(func(tx *storage.Tx) error {
		sites, err := load(tx)
		if err != nil {
			return err
		}
		before = make([]Site, len(sites))
		for i, s := range sites {
			before[i] = s.clone()
		}
		after, err = fn(sites)
		if err != nil {
			return err
		}
		return tx.Set(storage.ConnectedSites, after)
	})
	if err != nil {
		return err
	}
	if removed := Diff(before, after); len(removed) > 0 && r.emitter != nil {
		r.emitter.Emit(events.Disconnect, removed)
	}
	return nil
}

// Diff returns, per origin, the accounts present in before but missing
// from after.
func Diff(before, after []Site) map[string][]string {
	removed := map[string][]string{}
	for _, old := range before {
		i := find(after, old.URL)
		var gone []string
		for _, a := range old.Accounts {
			if i < 0 || !after[i].has(a) {
				gone = append(gone, a)
			}
		}
		if len(gone) > 0 {
			removed[old.URL] = append(removed[old.URL], gone...)
		}
	}
	return removed
}

// Connect grants accounts to site.URL. Accounts already granted stay
// granted; favIcon and provider config of an existing record are kept
// unless missing.
func (r *Registry) Connect(site Site, grant []string) error {
	if site.URL == "" {
		return errs.Validationf(errs.MsgInvalidSiteURL)
	}
	return r.update(func(sites []Site) ([]Site, error) {
		i := find(sites, site.URL)
		conn := Site{
			URL:               site.URL,
			FavIcon:           site.FavIcon,
			Permissions:       []string{},
			L1XProviderConfig: site.L1XProviderConfig,
		}
		var existing []string
		if i >= 0 {
			old := sites[i]
			if old.FavIcon != "" {
				conn.FavIcon = old.FavIcon
			}
			if old.L1XProviderConfig != nil {
				conn.L1XProviderConfig = old.L1XProviderConfig
			}
			existing = old.Accounts
		}
		conn.Accounts = union(existing, grant)
		conn.ConnectedAt = r.clock.Time().UnixMilli()

		if i >= 0 {
			sites[i] = conn
			return sites, nil
		}
		return append(sites, conn), nil
	})
}

// union keeps the order of a followed by the new members of b.
func union(a, b []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, key := range list {
			if key == "" || seen.Contains(normalize(key)) {
				continue
			}
			seen.Add(normalize(key))
			out = append(out, key)
		}
	}
	return out
}

func normalize(publicKey string) string {
	return accounts.StripPrefix(strings.ToLower(publicKey))
}

// Disconnect revokes one account. The record is kept even when no account
// remains.
func (r *Registry) Disconnect(origin, publicKey string) error {
	return r.update(func(sites []Site) ([]Site, error) {
		i := find(sites, origin)
		if i < 0 {
			return nil, errs.Validationf(errs.MsgInvalidSiteURL)
		}
		kept := []string{}
		for _, a := range sites[i].Accounts {
			if !accounts.SameAddress(a, publicKey) {
				kept = append(kept, a)
			}
		}
		sites[i].Accounts = kept
		return sites, nil
	})
}

// Remove forgets origin entirely. Unknown origins are ignored.
func (r *Registry) Remove(origin string) error {
	return r.update(func(sites []Site) ([]Site, error) {
		kept := make([]Site, 0, len(sites))
		for _, s := range sites {
			if s.URL != origin {
				kept = append(kept, s)
			}
		}
		return kept, nil
	})
}

// SetProviderConfig replaces the non-empty fields of the site's L1X
// provider config. Unknown origins are ignored.
func (r *Registry) SetProviderConfig(origin string, attrib providers.Attrib) error {
	return r.update(func(sites []Site) ([]Site, error) {
		i := find(sites, origin)
		if i < 0 {
			return sites, nil
		}
		current := providers.Attrib{}
		if sites[i].L1XProviderConfig != nil {
			current = *sites[i].L1XProviderConfig
		}
		if attrib.ClusterType != "" {
			current.ClusterType = attrib.ClusterType
		}
		if attrib.Endpoint != "" {
			current.Endpoint = attrib.Endpoint
		}
		sites[i].L1XProviderConfig = &current
		return sites, nil
	})
}

func (r *Registry) view(fn func([]Site)) error {
	return r.store.View(func(tx *storage.Tx) error {
		sites, err := load(tx)
		if err != nil {
			return err
		}
		fn(sites)
		return nil
	})
}

// Connected reports whether publicKey was granted to origin. Store failures
// count as not connected.
func (r *Registry) Connected(publicKey, origin string) bool {
	connected := false
	err := r.view(func(sites []Site) {
		if i := find(sites, origin); i >= 0 {
			connected = publicKey != "" && sites[i].has(publicKey)
		}
	})
	if err != nil {
		r.log.Error("failed to read connected sites", "err", err)
		return false
	}
	return connected
}

// IsConnected reports whether origin has at least one granted account.
func (r *Registry) IsConnected(origin string) (bool, error) {
	connected := false
	err := r.view(func(sites []Site) {
		if i := find(sites, origin); i >= 0 {
			connected = len(sites[i].Accounts) > 0
		}
	})
	return connected, err
}

// Get returns origin's record.
func (r *Registry) Get(origin string) (*Site, bool, error) {
	var site *Site
	err := r.view(func(sites []Site) {
		if i := find(sites, origin); i >= 0 {
			s := sites[i].clone()
			site = &s
		}
	})
	return site, site != nil, err
}

// Accounts lists the accounts granted to origin.
func (r *Registry) Accounts(origin string) ([]string, error) {
	site, ok, err := r.Get(origin)
	if err != nil || !ok {
		return []string{}, err
	}
	return site.Accounts, nil
}

// All returns every record.
func (r *Registry) All() ([]Site, error) {
	var out []Site
	err := r.view(func(sites []Site) {
		out = make([]Site, len(sites))
		for i, s := range sites {
			out[i] = s.clone()
		}
	})
	return out, err
}

// SitesForAccount lists the sites publicKey is connected to.
func (r *Registry) SitesForAccount(publicKey string) ([]Site, error) {
	var out []Site
	err := r.view(func(sites []Site) {
		for _, s := range sites {
			if s.has(publicKey) {
				out = append(out, s.clone())
			}
		}
	})
	return out, err
}
