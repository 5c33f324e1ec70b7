package kmsjwt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	aliasActive   = "active"
	aliasInactive = "inactive"
	aliasPrevious = "previous"
	legacyKey     = "legacy"

	contentEncryption = "A256GCM"
)

type jweHeader struct {
	Alg string `json:"alg"`
	Enc string `json:"enc"`
}

// Decrypt opens a compact JWE whose content key was wrapped with
// RSA-OAEP-256 by one of the decryption keys, and returns the plaintext.
func (a *Adapter) Decrypt(ctx context.Context, compact string) (string, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 5 {
		return "", newError(KindMalformedJWE, "Missing component", nil)
	}
	protected := parts[0]

	var header jweHeader
	rawHeader, err := b64.DecodeString(protected)
	if err != nil {
		return "", newError(KindMalformedJWE, "decode protected header", err)
	}
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return "", newError(KindMalformedJWE, "parse protected header", err)
	}
	if header.Enc != "" && header.Enc != contentEncryption {
		return "", newError(KindMalformedJWE, fmt.Sprintf("unsupported content encryption %q", header.Enc), nil)
	}

	segments := make([][]byte, 4)
	for i, name := range []string{"encrypted key", "iv", "ciphertext", "tag"} {
		segments[i], err = b64.DecodeString(parts[i+1])
		if err != nil {
			return "", newError(KindMalformedJWE, "decode "+name, err)
		}
	}
	encryptedKey, iv, ciphertext, tag := segments[0], segments[1], segments[2], segments[3]

	cek, err := a.unwrapContentKey(ctx, encryptedKey)
	if err != nil {
		return "", err
	}

	plaintext, err := openGCM(cek, iv, ciphertext, tag, []byte(protected))
	if err != nil {
		return "", newError(KindPayloadDecrypt, "decrypt payload", err)
	}
	if !utf8.Valid(plaintext) {
		return "", newError(KindDecode, "payload is not valid UTF-8", nil)
	}
	return string(plaintext), nil
}

// rotationAliases lists decryption key aliases newest first.
func (a *Adapter) rotationAliases() []struct{ generation, keyID string } {
	base := a.cfg.DecryptionAliasBase
	return []struct{ generation, keyID string }{
		{aliasActive, base + "_" + aliasActive},
		{aliasInactive, base + "_" + aliasInactive},
		{aliasPrevious, base + "_" + aliasPrevious},
	}
}

// unwrapContentKey tries each rotation alias in order, then the legacy key.
// Only the legacy failure is surfaced; alias failures are expected during
// rollover and are logged.
func (a *Adapter) unwrapContentKey(ctx context.Context, encryptedKey []byte) ([]byte, error) {
	if a.cfg.RotationEnabled {
		for _, alias := range a.rotationAliases() {
			cek, err := a.keys.Decrypt(ctx, alias.keyID, encryptedKey)
			if err == nil && len(cek) > 0 {
				a.metrics.IncDecryptKey(alias.generation, true)
				return cek, nil
			}
			a.metrics.IncDecryptKey(alias.generation, false)
			a.logger.WarnContext(ctx, "decryption key alias failed, trying next",
				"alias", alias.generation,
				"error", err,
			)
		}
	}

	if a.cfg.LegacyDecryptionKeyID == "" {
		return nil, newError(KindKeyUnwrap, "no legacy decryption key configured", nil)
	}
	cek, err := a.keys.Decrypt(ctx, a.cfg.LegacyDecryptionKeyID, encryptedKey)
	if err == nil && len(cek) == 0 {
		err = errors.New("empty content key")
	}
	if err != nil {
		a.metrics.IncDecryptKey(legacyKey, false)
		return nil, newError(KindKeyUnwrap, "no decryption key could unwrap the content key", err)
	}
	a.metrics.IncDecryptKey(legacyKey, true)
	return cek, nil
}

func openGCM(cek, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(cek) != 32 {
		return nil, fmt.Errorf("content key must be 32 bytes, got %d", len(cek))
	}
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	return gcm.Open(nil, iv, sealed, aad)
}
