package kmsjwt

import (
	"errors"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// es256 scalars are 32 bytes; a JOSE signature is r||s.
const es256ScalarSize = 32

var errBadSignature = errors.New("malformed ecdsa signature")

// derToJOSE converts an ASN.1 DER ECDSA signature, as returned by the key
// service, into the fixed-length form JWS requires.
func derToJOSE(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, asn1.SEQUENCE) || !input.Empty() {
		return nil, errBadSignature
	}
	r, s := new(big.Int), new(big.Int)
	if !inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) || !inner.Empty() {
		return nil, errBadSignature
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.BitLen() > 8*es256ScalarSize || s.BitLen() > 8*es256ScalarSize {
		return nil, errBadSignature
	}

	out := make([]byte, 2*es256ScalarSize)
	r.FillBytes(out[:es256ScalarSize])
	s.FillBytes(out[es256ScalarSize:])
	return out, nil
}

// joseToDER is the inverse of derToJOSE.
func joseToDER(sig []byte) ([]byte, error) {
	if len(sig) != 2*es256ScalarSize {
		return nil, errBadSignature
	}
	r := new(big.Int).SetBytes(sig[:es256ScalarSize])
	s := new(big.Int).SetBytes(sig[es256ScalarSize:])

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}
