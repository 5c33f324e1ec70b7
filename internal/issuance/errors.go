package issuance

import "errors"

// Each failure past session resolution is reported to the relying party as
// access_denied with the matching description below.
var (
	ErrVendorSessionIncomplete = errors.New("vendor session not complete")
	ErrMissingFields           = errors.New("vendor document fields not populated")
	ErrAmbiguousFields         = errors.New("multiple document fields in vendor response")
	ErrMissingName             = errors.New("missing name info in document fields")
	ErrNameMismatch            = errors.New("document name does not match claimed name")
	ErrSigning                 = errors.New("unable to create signed credential")
	ErrDelivery                = errors.New("failed to deliver credential")
)
