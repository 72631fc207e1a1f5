// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chains holds the static chain registry for each wallet family.
package chains

import (
	"errors"
	"fmt"
	"strconv"
)

// Family is a chain ecosystem. It fixes address format, signature scheme
// and which wallet operations exist.
type Family string

const (
	L1X    Family = "L1X"
	EVM    Family = "EVM"
	NonEVM Family = "NON-EVM"
)

var ErrUnknownFamily = errors.New("Unknown vm type.")

// Families lists every supported family in display order.
var Families = []Family{L1X, EVM, NonEVM}

func ParseFamily(s string) (Family, error) {
	switch f := Family(s); f {
	case L1X, EVM, NonEVM:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
}

// DefaultDecimals is the unit precision of the family's native token.
func (f Family) DefaultDecimals() uint8 {
	if f == NonEVM {
		return 9
	}
	return 18
}

// Environment is a named RPC and explorer pair within a chain.
type Environment struct {
	RPC         string `json:"rpc"`
	ExplorerURI string `json:"exploreruri"`
}

// Chain describes one network a family can talk to.
type Chain struct {
	Icon        string                 `json:"icon"`
	Name        string                 `json:"name"`
	Symbol      string                 `json:"symbol"`
	RPC         string                 `json:"rpc"`
	ChainID     uint64                 `json:"chainId"`
	NativeToken Token                  `json:"nativeToken"`
	ExplorerURI string                 `json:"exploreruri"`
	Environment map[string]Environment `json:"environment"`
}

// ID is the chain id in the string form transactions carry.
func (c Chain) ID() string { return strconv.FormatUint(c.ChainID, 10) }

// Clone returns a deep copy.
func (c Chain) Clone() Chain {
	env := make(map[string]Environment, len(c.Environment))
	for name, e := range c.Environment {
		env[name] = e
	}
	c.Environment = env
	return c
}

// WithEnvironment overlays the environment whose RPC is rpc, if any.
// It reports whether an environment matched.
func (c Chain) WithEnvironment(rpc string) (Chain, bool) {
	c = c.Clone()
	if rpc == "" {
		return c, false
	}
	for _, env := range c.Environment {
		if env.RPC == rpc {
			c.RPC = env.RPC
			c.ExplorerURI = env.ExplorerURI
			return c, true
		}
	}
	return c, false
}
