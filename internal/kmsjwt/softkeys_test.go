package kmsjwt

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
)

// softKeys is an in-memory KeyService holding real key pairs, so round trips
// exercise the same DER handling as the KMS path.
type softKeys struct {
	mu          sync.Mutex
	signing     map[string]*ecdsa.PrivateKey
	decryption  map[string]*rsa.PrivateKey
	decryptCall []string
}

func newSoftKeys() *softKeys {
	return &softKeys{
		signing:    map[string]*ecdsa.PrivateKey{},
		decryption: map[string]*rsa.PrivateKey{},
	}
}

func (k *softKeys) addSigningKey(keyID string) *ecdsa.PrivateKey {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	k.signing[keyID] = priv
	return priv
}

func (k *softKeys) addDecryptionKey(keyID string) *rsa.PrivateKey {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	k.decryption[keyID] = priv
	return priv
}

func (k *softKeys) Sign(_ context.Context, keyID string, message []byte) ([]byte, error) {
	priv, ok := k.signing[keyID]
	if !ok {
		return nil, fmt.Errorf("unknown key %s", keyID)
	}
	digest := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, priv, digest[:])
}

func (k *softKeys) Verify(_ context.Context, keyID string, message, signature []byte) (bool, error) {
	priv, ok := k.signing[keyID]
	if !ok {
		return false, fmt.Errorf("unknown key %s", keyID)
	}
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(&priv.PublicKey, digest[:], signature), nil
}

func (k *softKeys) Decrypt(_ context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	k.mu.Lock()
	k.decryptCall = append(k.decryptCall, keyID)
	k.mu.Unlock()
	priv, ok := k.decryption[keyID]
	if !ok {
		return nil, errors.New("NotFoundException: alias does not exist")
	}
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
}

func (k *softKeys) PublicKey(_ context.Context, keyID string) (crypto.PublicKey, error) {
	priv, ok := k.signing[keyID]
	if !ok {
		return nil, fmt.Errorf("unknown key %s", keyID)
	}
	return &priv.PublicKey, nil
}
