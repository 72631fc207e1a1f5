// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package accounts owns the persisted account collection.
package accounts

import (
	"errors"
	"strings"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/errs"
	"github.com/ava-labs/xwallet/storage"
)

const (
	MsgDuplicateName    = "Account name already exist. Please try with different account name."
	MsgDuplicateAccount = "Account already exist. Please try with different private key."
	MsgInvalidName      = "Invalid account name. Please try with valid account name."
	MsgInvalidAccount   = "Invalid account. Try with valid account."
)

var errUnknownFamily = errors.New("unknown family")

// Account is one key pair owned by the wallet.
type Account struct {
	PrivateKey      string        `json:"privateKey"`
	PublicKey       string        `json:"publicKey"`
	AccountName     string        `json:"accountName"`
	Type            chains.Family `json:"type"`
	CreatedAt       int64         `json:"createdAt"`
	Icon            string        `json:"icon"`
	CreatedFromSeed bool          `json:"createdFromSeed,omitempty"`
}

// Collection is every account grouped by family, plus the active one.
type Collection struct {
	L1X    []Account `json:"L1X"`
	EVM    []Account `json:"EVM"`
	NonEVM []Account `json:"NON-EVM"`
	Active *Account  `json:"ACTIVE"`
}

// StripPrefix drops a leading 0x.
func StripPrefix(address string) string {
	return strings.TrimPrefix(strings.TrimSpace(address), "0x")
}

// AddPrefix adds a leading 0x if it is missing.
func AddPrefix(address string) string {
	if strings.HasPrefix(address, "0x") {
		return address
	}
	return "0x" + address
}

// SameAddress compares two addresses ignoring case and any 0x prefix.
func SameAddress(a, b string) bool {
	return strings.EqualFold(StripPrefix(a), StripPrefix(b))
}

// Load reads the collection, dropping a dangling ACTIVE reference.
func Load(tx *storage.Tx) (*Collection, error) {
	c := &Collection{}
	if _, err := tx.Get(storage.Wallets, c); err != nil {
		return nil, err
	}
	c.revalidate()
	return c, nil
}

func (c *Collection) Save(tx *storage.Tx) error {
	return tx.Set(storage.Wallets, c)
}

func (c *Collection) family(f chains.Family) (*[]Account, error) {
	switch f {
	case chains.L1X:
		return &c.L1X, nil
	case chains.EVM:
		return &c.EVM, nil
	case chains.NonEVM:
		return &c.NonEVM, nil
	default:
		return nil, errUnknownFamily
	}
}

// List returns the accounts of family f.
func (c *Collection) List(f chains.Family) []Account {
	list, err := c.family(f)
	if err != nil {
		return nil
	}
	return *list
}

// Count is the number of accounts in family f. It indexes derivation paths.
func (c *Collection) Count(f chains.Family) int {
	return len(c.List(f))
}

// Lookup finds an account in any family by public key.
func (c *Collection) Lookup(publicKey string) (Account, bool) {
	for _, f := range chains.Families {
		if a, ok := c.LookupIn(f, publicKey); ok {
			return a, true
		}
	}
	return Account{}, false
}

func (c *Collection) LookupIn(f chains.Family, publicKey string) (Account, bool) {
	for _, a := range c.List(f) {
		if SameAddress(a.PublicKey, publicKey) {
			return a, true
		}
	}
	return Account{}, false
}

// CheckName fails if name is blank or already used in family f.
func (c *Collection) CheckName(f chains.Family, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.Validationf(MsgInvalidName)
	}
	for _, a := range c.List(f) {
		if a.AccountName == name {
			return errs.Validationf(MsgDuplicateName)
		}
	}
	return nil
}

// CheckNew validates a prospective account for family f.
func (c *Collection) CheckNew(f chains.Family, name, publicKey string) error {
	if err := c.CheckName(f, name); err != nil {
		return err
	}
	if _, ok := c.LookupIn(f, publicKey); ok {
		return errs.Validationf(MsgDuplicateAccount)
	}
	return nil
}

// Add appends a and makes it active. Callers run CheckNew first.
func (c *Collection) Add(a Account) error {
	list, err := c.family(a.Type)
	if err != nil {
		return err
	}
	*list = append(*list, a)
	active := a
	c.Active = &active
	return nil
}

// MarkCreatedFromSeed flags an existing account as derived from the stored
// mnemonic.
func (c *Collection) MarkCreatedFromSeed(f chains.Family, publicKey string) bool {
	list, err := c.family(f)
	if err != nil {
		return false
	}
	for i := range *list {
		if SameAddress((*list)[i].PublicKey, publicKey) {
			(*list)[i].CreatedFromSeed = true
			if c.Active != nil && c.Active.Type == f && SameAddress(c.Active.PublicKey, publicKey) {
				c.Active.CreatedFromSeed = true
			}
			return true
		}
	}
	return false
}

// Rename sets the name of the account and of ACTIVE when it is the same
// account.
func (c *Collection) Rename(f chains.Family, publicKey, name string) error {
	list, err := c.family(f)
	if err != nil {
		return errs.Validationf(MsgInvalidAccount)
	}
	name = strings.TrimSpace(name)
	idx := -1
	for i, a := range *list {
		if SameAddress(a.PublicKey, publicKey) {
			idx = i
			continue
		}
		if a.AccountName == name {
			return errs.Validationf(MsgDuplicateName)
		}
	}
	if idx < 0 {
		return errs.Validationf(MsgInvalidAccount)
	}
	if name == "" {
		return errs.Validationf(MsgInvalidName)
	}
	(*list)[idx].AccountName = name
	if c.Active != nil && c.Active.Type == f && SameAddress(c.Active.PublicKey, publicKey) {
		c.Active.AccountName = name
	}
	return nil
}

// SetActive points ACTIVE at an existing account.
func (c *Collection) SetActive(f chains.Family, publicKey string) error {
	a, ok := c.LookupIn(f, publicKey)
	if !ok {
		return errs.Validationf(MsgInvalidAccount)
	}
	c.Active = &a
	return nil
}

// revalidate clears ACTIVE unless it names an account in its family list.
func (c *Collection) revalidate() {
	if c.Active == nil {
		return
	}
	a, ok := c.LookupIn(c.Active.Type, c.Active.PublicKey)
	if !ok {
		c.Active = nil
		return
	}
	c.Active = &a
}
