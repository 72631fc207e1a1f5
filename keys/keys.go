// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keys derives wallet keys from a BIP-39 mnemonic.
package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"
)

const (
	entropyBits = 128

	// secp256k1BasePath is shared by the L1X and EVM families.
	secp256k1BasePath = "m/44'/60'/0'/0"

	solanaCoinType = 501
)

var (
	ErrInvalidMnemonic   = errors.New("Unable to create wallet. Invalid mnemonic.")
	ErrInvalidPrivateKey = errors.New("Invalid private key. Please try with valid private key.")

	ed25519Curve = []byte("ed25519 seed")
)

// NewMnemonic returns a fresh 12 word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Seed validates mnemonic and returns its BIP-39 seed with an empty
// passphrase.
func Seed(mnemonic string) ([]byte, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

// Secp256k1Path is the BIP-44 path of the index'th L1X or EVM account.
func Secp256k1Path(index int) string {
	return fmt.Sprintf("%s/%d", secp256k1BasePath, index)
}

// DeriveSecp256k1 walks path from the BIP-32 master key of seed. Private
// keys are always serialized as 32 bytes when hardening.
func DeriveSecp256k1(seed []byte, path string) (*ecdsa.PrivateKey, error) {
	indexes, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	for _, i := range indexes {
		key, err = key.Derive(i)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child %d: %w", i, err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.ToECDSA(), nil
}

// ParseSecp256k1 parses a hex private key with or without 0x.
func ParseSecp256k1(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return key, nil
}

// EncodeSecp256k1 is the 0x hex form stored with an account.
func EncodeSecp256k1(key *ecdsa.PrivateKey) string {
	return "0x" + fmt.Sprintf("%x", crypto.FromECDSA(key))
}

// SolanaPath is the fully hardened SLIP-0010 path m/44'/501'/index'/0'.
func SolanaPath(index int) []uint32 {
	return []uint32{44, solanaCoinType, uint32(index), 0}
}

// DeriveEd25519 derives an ed25519 key with SLIP-0010. Every segment of
// path is hardened.
func DeriveEd25519(seed []byte, path []uint32) ed25519.PrivateKey {
	mac := hmac.New(sha512.New, ed25519Curve)
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode := sum[:32], sum[32:]

	for _, segment := range path {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, segment|hdkeychain.HardenedKeyStart)

		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chainCode = sum[:32], sum[32:]
	}
	return ed25519.NewKeyFromSeed(key)
}
