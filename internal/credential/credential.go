// Package credential assembles identity-check verifiable credentials from
// vendor evidence. Nothing here performs I/O.
package credential

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vcissuer/internal/vendor"
)

var (
	contexts = []string{
		"https://www.w3.org/2018/credentials/v1",
		"https://vocab.account.gov.uk/contexts/identity-v1.jsonld",
	}
	types = []string{"VerifiableCredential", "IdentityCheckCredential"}
)

const (
	GivenName  = "GivenName"
	FamilyName = "FamilyName"
)

type NamePart struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

type Name struct {
	NameParts []NamePart `json:"nameParts"`
}

type BirthDate struct {
	Value string `json:"value"`
}

type Address struct {
	BuildingNumber  string `json:"buildingNumber"`
	AddressLocality string `json:"addressLocality"`
	PostalCode      string `json:"postalCode"`
	AddressCountry  string `json:"addressCountry"`
}

// Subject is the credentialSubject. Exactly one document list is populated.
type Subject struct {
	Name            []Name            `json:"name"`
	BirthDate       []BirthDate       `json:"birthDate"`
	Address         []Address         `json:"address,omitempty"`
	Passport        []Passport        `json:"passport,omitempty"`
	DrivingPermit   []DrivingPermit   `json:"drivingPermit,omitempty"`
	IDCard          []NationalID      `json:"idCard,omitempty"`
	ResidencePermit []ResidencePermit `json:"residencePermit,omitempty"`
}

type VerifiableCredential struct {
	Context           []string   `json:"@context"`
	Type              []string   `json:"type"`
	CredentialSubject Subject    `json:"credentialSubject"`
	Evidence          []Evidence `json:"evidence"`
}

// Claims is the JWT payload carrying a credential.
type Claims struct {
	VC VerifiableCredential `json:"vc"`
	jwt.RegisteredClaims
}

// NamePartsFrom splits space separated given names into one part each and
// appends the family name.
func NamePartsFrom(givenNames, familyName string) []NamePart {
	var parts []NamePart
	for _, given := range strings.Fields(givenNames) {
		parts = append(parts, NamePart{Value: given, Type: GivenName})
	}
	return append(parts, NamePart{Value: familyName, Type: FamilyName})
}

// AddressFrom maps the structured address on a document. Nil in, nil out.
func AddressFrom(addr *vendor.PostalAddress) *Address {
	if addr == nil {
		return nil
	}
	return &Address{
		BuildingNumber:  addr.BuildingNumber,
		AddressLocality: addr.TownCity,
		PostalCode:      addr.PostalCode,
		AddressCountry:  addr.Country,
	}
}

// Build assembles the credential body.
func Build(doc Document, names []NamePart, birthDate string, address *Address, evidence Evidence) VerifiableCredential {
	subject := newSubject(doc, names, birthDate)
	if address != nil {
		subject.Address = []Address{*address}
	}
	return VerifiableCredential{
		Context:           contexts,
		Type:              types,
		CredentialSubject: subject,
		Evidence:          []Evidence{evidence},
	}
}

// Restricted is the subject view attached to the issuance audit record: name,
// birth date and the document labelled with its type. Address is left out.
func Restricted(doc Document, names []NamePart, birthDate string) Subject {
	return newSubject(doc.withType(), names, birthDate)
}

func newSubject(doc Document, names []NamePart, birthDate string) Subject {
	subject := Subject{
		Name:      []Name{{NameParts: names}},
		BirthDate: []BirthDate{{Value: birthDate}},
	}
	switch d := doc.(type) {
	case Passport:
		subject.Passport = []Passport{d}
	case DrivingPermit:
		subject.DrivingPermit = []DrivingPermit{d}
	case NationalID:
		subject.IDCard = []NationalID{d}
	case ResidencePermit:
		subject.ResidencePermit = []ResidencePermit{d}
	}
	return subject
}

// NewClaims wraps vc for subject. The credential is valid from now and
// carries a fresh urn:uuid identifier.
func NewClaims(vc VerifiableCredential, subject, issuer string, now time.Time) Claims {
	issued := jwt.NewNumericDate(now)
	return Claims{
		VC: vc,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			NotBefore: issued,
			IssuedAt:  issued,
			ID:        "urn:uuid:" + uuid.NewString(),
		},
	}
}
