// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"

	"github.com/ava-labs/xwallet/chains"
)

// ErrUnknownFamily is returned for a network type without a VM.
var ErrUnknownFamily = fmt.Errorf("vm: %w", chains.ErrUnknownFamily)

// Factory builds VMs sharing one set of collaborators.
type Factory struct {
	cfg *Config
}

func NewFactory(cfg *Config) *Factory {
	return &Factory{cfg: cfg}
}

// Config returns the collaborators handed to every VM.
func (f *Factory) Config() *Config { return f.cfg }

// New returns a fresh VM for family. chainID selects the active network;
// an unknown id falls back to the family's first chain.
func (f *Factory) New(family chains.Family, publicKey, chainID string) (VM, error) {
	switch family {
	case chains.L1X:
		return NewL1X(f.cfg, publicKey, chainID), nil
	case chains.EVM:
		return NewEVM(f.cfg, publicKey, chainID), nil
	case chains.NonEVM:
		return NewSolana(f.cfg, publicKey, chainID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
}
