// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

const (
	secretLength  = 50
	secretCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	secretKey = []byte("storage-secret")

	errShortCiphertext = errors.New("sealed value has invalid iv")
	errWrongVersion    = errors.New("wrong version")

	_ SecretState = (*secretState)(nil)
)

// SecretState is a thin wrapper around a database holding the symmetric
// secret every value is sealed under.
type SecretState interface {
	// Cipher returns the block cipher, generating and persisting the secret
	// on first use.
	Cipher() (cipher.Block, error)
}

type secretState struct {
	secretDB database.Database
	block    cipher.Block
}

func NewSecretState(db database.Database) SecretState {
	return &secretState{secretDB: db}
}

func (s *secretState) Cipher() (cipher.Block, error) {
	if s.block != nil {
		return s.block, nil
	}

	secret, err := s.secretDB.Get(secretKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		if err := s.secretDB.Put(secretKey, secret); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	// AES-256 keyed by SHA-256 of the secret.
	block, err := aes.NewCipher(hashing.ComputeHash256(secret))
	if err != nil {
		return nil, err
	}
	s.block = block
	return block, nil
}

func randomSecret() ([]byte, error) {
	max := big.NewInt(int64(len(secretCharset)))
	secret := make([]byte, secretLength)
	for i := range secret {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, err
		}
		secret[i] = secretCharset[n.Int64()]
	}
	return secret, nil
}

func seal(block cipher.Block, plaintext []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	data := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(data, plaintext)
	return Codec.Marshal(CodecVersion, &sealedValue{IV: iv, Data: data})
}

func open(block cipher.Block, sealed []byte) ([]byte, error) {
	v := sealedValue{}
	parsedVersion, err := Codec.Unmarshal(sealed, &v)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongVersion
	}
	if len(v.IV) != aes.BlockSize {
		return nil, errShortCiphertext
	}
	plaintext := make([]byte, len(v.Data))
	cipher.NewCTR(block, v.IV).XORKeyStream(plaintext, v.Data)
	return plaintext, nil
}
