package credential

import (
	"fmt"

	"vcissuer/internal/vendor"
)

// Vendor document type tags.
const (
	TypePassport        = "PASSPORT"
	TypeDrivingLicence  = "DRIVING_LICENCE"
	TypeNationalID      = "NATIONAL_ID"
	TypeResidencePermit = "RESIDENCE_PERMIT"

	// HomeCountry is the ISO 3166 alpha-3 code driving licence projections
	// branch on.
	HomeCountry = "GBR"
)

// UnsupportedDocumentTypeError reports a vendor document tag with no projection.
type UnsupportedDocumentTypeError struct {
	DocumentType string
}

func (e *UnsupportedDocumentTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q", e.DocumentType)
}

// Document is one document projection. The set of implementations is closed.
type Document interface {
	// Kind returns the vendor tag the document was built from.
	Kind() string
	withType() Document
}

type Passport struct {
	DocumentType   string `json:"documentType,omitempty"`
	DocumentNumber string `json:"documentNumber"`
	ExpiryDate     string `json:"expiryDate"`
	ICAOIssuerCode string `json:"icaoIssuerCode"`
}

// DrivingPermit carries the issuer and issue date for every licence. Only
// home-country licences carry the address printed on the card.
type DrivingPermit struct {
	DocumentType   string `json:"documentType,omitempty"`
	PersonalNumber string `json:"personalNumber"`
	ExpiryDate     string `json:"expiryDate"`
	IssuingCountry string `json:"issuingCountry"`
	IssuedBy       string `json:"issuedBy"`
	IssueDate      string `json:"issueDate"`
	FullAddress    string `json:"fullAddress,omitempty"`
}

type NationalID struct {
	DocumentType   string `json:"documentType,omitempty"`
	DocumentNumber string `json:"documentNumber"`
	ExpiryDate     string `json:"expiryDate"`
	IssueDate      string `json:"issueDate"`
	ICAOIssuerCode string `json:"icaoIssuerCode"`
}

type ResidencePermit struct {
	DocumentType   string `json:"documentType,omitempty"`
	DocumentNumber string `json:"documentNumber"`
	ExpiryDate     string `json:"expiryDate"`
	IssueDate      string `json:"issueDate"`
	ICAOIssuerCode string `json:"icaoIssuerCode"`
}

func (Passport) Kind() string        { return TypePassport }
func (DrivingPermit) Kind() string   { return TypeDrivingLicence }
func (NationalID) Kind() string      { return TypeNationalID }
func (ResidencePermit) Kind() string { return TypeResidencePermit }

// withType returns a copy labelled with its vendor tag, the shape audit
// records use.
func (d Passport) withType() Document        { d.DocumentType = TypePassport; return d }
func (d DrivingPermit) withType() Document   { d.DocumentType = TypeDrivingLicence; return d }
func (d NationalID) withType() Document      { d.DocumentType = TypeNationalID; return d }
func (d ResidencePermit) withType() Document { d.DocumentType = TypeResidencePermit; return d }

// DocumentFromFields selects the projection for the document the vendor
// extracted.
func DocumentFromFields(fields vendor.DocumentFields) (Document, error) {
	switch fields.DocumentType {
	case TypePassport:
		return Passport{
			DocumentNumber: fields.DocumentNumber,
			ExpiryDate:     fields.ExpirationDate,
			ICAOIssuerCode: fields.IssuingCountry,
		}, nil
	case TypeDrivingLicence:
		permit := DrivingPermit{
			PersonalNumber: fields.DocumentNumber,
			ExpiryDate:     fields.ExpirationDate,
			IssuingCountry: fields.IssuingCountry,
			IssueDate:      fields.DateOfIssue,
		}
		if fields.IssuingCountry != HomeCountry {
			permit.IssuedBy = fields.PlaceOfIssue
			return permit, nil
		}
		permit.IssuedBy = fields.IssuingAuthority
		if fields.StructuredPostalAddress != nil {
			permit.FullAddress = fields.StructuredPostalAddress.FormattedAddress
		}
		return permit, nil
	case TypeNationalID:
		return NationalID{
			DocumentNumber: fields.DocumentNumber,
			ExpiryDate:     fields.ExpirationDate,
			IssueDate:      fields.DateOfIssue,
			ICAOIssuerCode: fields.IssuingCountry,
		}, nil
	case TypeResidencePermit:
		return ResidencePermit{
			DocumentNumber: fields.DocumentNumber,
			ExpiryDate:     fields.ExpirationDate,
			IssueDate:      fields.DateOfIssue,
			ICAOIssuerCode: fields.IssuingCountry,
		}, nil
	default:
		return nil, &UnsupportedDocumentTypeError{DocumentType: fields.DocumentType}
	}
}
