package kmsjwt

//go:generate mockgen -source=keyservice.go -destination=mocks/mocks.go -package=mocks KeyService

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
)

// KeyService performs private-key operations on keys this process never holds.
type KeyService interface {
	// Sign returns an ASN.1 DER ECDSA-SHA256 signature over the raw message.
	Sign(ctx context.Context, keyID string, message []byte) ([]byte, error)
	// Verify reports whether the DER signature is valid. An invalid signature
	// is (false, nil); errors are reserved for the call itself failing.
	Verify(ctx context.Context, keyID string, message, signature []byte) (bool, error)
	// Decrypt unwraps an RSAES-OAEP-SHA256 ciphertext.
	Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
	// PublicKey returns the public half of keyID.
	PublicKey(ctx context.Context, keyID string) (crypto.PublicKey, error)
}

// kmsAPI is the subset of the AWS KMS client used here.
type kmsAPI interface {
	SignWithContext(ctx aws.Context, input *kms.SignInput, opts ...request.Option) (*kms.SignOutput, error)
	VerifyWithContext(ctx aws.Context, input *kms.VerifyInput, opts ...request.Option) (*kms.VerifyOutput, error)
	DecryptWithContext(ctx aws.Context, input *kms.DecryptInput, opts ...request.Option) (*kms.DecryptOutput, error)
	GetPublicKeyWithContext(ctx aws.Context, input *kms.GetPublicKeyInput, opts ...request.Option) (*kms.GetPublicKeyOutput, error)
}

// KMSKeyService implements KeyService on AWS KMS.
type KMSKeyService struct {
	client kmsAPI
}

// NewKMSKeyService wraps a KMS client, usually kms.New(session).
func NewKMSKeyService(client kmsAPI) *KMSKeyService {
	return &KMSKeyService{client: client}
}

func (k *KMSKeyService) Sign(ctx context.Context, keyID string, message []byte) ([]byte, error) {
	out, err := k.client.SignWithContext(ctx, &kms.SignInput{
		KeyId:            aws.String(keyID),
		Message:          message,
		MessageType:      aws.String(kms.MessageTypeRaw),
		SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
	})
	if err != nil {
		return nil, fmt.Errorf("kms sign: %w", err)
	}
	return out.Signature, nil
}

func (k *KMSKeyService) Verify(ctx context.Context, keyID string, message, signature []byte) (bool, error) {
	out, err := k.client.VerifyWithContext(ctx, &kms.VerifyInput{
		KeyId:            aws.String(keyID),
		Message:          message,
		MessageType:      aws.String(kms.MessageTypeRaw),
		Signature:        signature,
		SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == kms.ErrCodeKMSInvalidSignatureException {
			return false, nil
		}
		return false, fmt.Errorf("kms verify: %w", err)
	}
	return aws.BoolValue(out.SignatureValid), nil
}

func (k *KMSKeyService) Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	out, err := k.client.DecryptWithContext(ctx, &kms.DecryptInput{
		KeyId:               aws.String(keyID),
		CiphertextBlob:      ciphertext,
		EncryptionAlgorithm: aws.String(kms.EncryptionAlgorithmSpecRsaesOaepSha256),
	})
	if err != nil {
		return nil, fmt.Errorf("kms decrypt: %w", err)
	}
	if len(out.Plaintext) == 0 {
		return nil, errors.New("kms decrypt: no plaintext returned")
	}
	return out.Plaintext, nil
}

func (k *KMSKeyService) PublicKey(ctx context.Context, keyID string) (crypto.PublicKey, error) {
	out, err := k.client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("kms get public key: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse kms public key: %w", err)
	}
	return pub, nil
}
