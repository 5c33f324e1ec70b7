package credential

import (
	"errors"
	"fmt"

	"vcissuer/internal/vendor"
)

var (
	// ErrMissingChecks means a mandatory check is absent or not DONE.
	ErrMissingChecks = errors.New("mandatory checks missing or incomplete")
	// ErrUnscorableDocument means no strength score exists for the document
	// type and issuing country.
	ErrUnscorableDocument = errors.New("document cannot be scored")
)

var mandatoryChecks = []string{
	vendor.CheckDocumentAuthenticity,
	vendor.CheckFaceMatch,
	vendor.CheckVisualReview,
	vendor.CheckSchemeValidity,
	vendor.CheckProfileDocumentMatch,
}

const (
	methodCrypto      = "vcrypt"
	methodVisual      = "vri"
	methodPhoto       = "pvr"
	methodBiometric   = "bvr"
	policyPublished   = "published"
	verificationLevel = 3
)

// Evidence is the single IdentityCheck entry of a credential.
type Evidence struct {
	Type               string        `json:"type"`
	Txn                string        `json:"txn"`
	StrengthScore      int           `json:"strengthScore"`
	ValidityScore      int           `json:"validityScore"`
	VerificationScore  int           `json:"verificationScore"`
	CI                 []string      `json:"ci,omitempty"`
	CheckDetails       []CheckDetail `json:"checkDetails,omitempty"`
	FailedCheckDetails []CheckDetail `json:"failedCheckDetails,omitempty"`
}

type CheckDetail struct {
	CheckMethod                       string `json:"checkMethod"`
	Txn                               string `json:"txn,omitempty"`
	IdentityCheckPolicy               string `json:"identityCheckPolicy,omitempty"`
	PhotoVerificationProcessLevel     int    `json:"photoVerificationProcessLevel,omitempty"`
	BiometricVerificationProcessLevel int    `json:"biometricVerificationProcessLevel,omitempty"`
}

// CIReason pairs a contra-indicator with the vendor rejection reason that
// raised it. Reasons go to audit only, never into the credential.
type CIReason struct {
	CI     string `json:"ci"`
	Reason string `json:"reason"`
}

// Failed reports whether any score is zero.
func (e Evidence) Failed() bool {
	return e.StrengthScore == 0 || e.ValidityScore == 0 || e.VerificationScore == 0
}

var faceMatchCI = map[string][]string{
	"FACE_NOT_GENUINE": {"V01"},
	"LARGE_AGE_GAP":    {"V01"},
	"PHOTO_OF_MASK":    {"V01"},
	"PHOTO_OF_PHOTO":   {"V01"},
	"DIFFERENT_PERSON": {"V01"},
}

var authenticityCI = map[string][]string{
	"COUNTERFEIT":                        {"D14"},
	"EXPIRED_DOCUMENT":                   {"D16"},
	"FRAUD_LIST_MATCH":                   {"F03", "D14"},
	"DOC_NUMBER_INVALID":                 {"D02"},
	"TAMPERED":                           {"D14"},
	"DATA_MISMATCH":                      {"D14"},
	"CHIP_DATA_INTEGRITY_FAILED":         {"D14"},
	"CHIP_SIGNATURE_VERIFICATION_FAILED": {"D14"},
	"CHIP_CSCA_VERIFICATION_FAILED":      {"D14"},
}

// ScoreEvidence grades the vendor's checks on doc. txn is the vendor session
// id recorded against each check.
func ScoreEvidence(result *vendor.SessionResult, doc vendor.IDDocument, txn string) (Evidence, []CIReason, error) {
	checks := make(map[string]vendor.Check, len(mandatoryChecks))
	for _, name := range mandatoryChecks {
		check, ok := result.FindCheck(name)
		if !ok {
			return Evidence{}, nil, fmt.Errorf("%w: %s absent", ErrMissingChecks, name)
		}
		if check.State != vendor.StateDone {
			return Evidence{}, nil, fmt.Errorf("%w: %s is %s", ErrMissingChecks, name, check.State)
		}
		checks[name] = check
	}
	authenticity := checks[vendor.CheckDocumentAuthenticity].Report
	faceMatch := checks[vendor.CheckFaceMatch].Report

	chip := hasValidChip(doc.DocumentType, authenticity)
	strength, err := strengthScore(doc.DocumentType, doc.IssuingCountry, chip)
	if err != nil {
		return Evidence{}, nil, err
	}

	evidence := Evidence{
		Type:              "IdentityCheck",
		Txn:               txn,
		StrengthScore:     strength,
		ValidityScore:     validityScore(authenticity.Recommendation.Value, chip),
		VerificationScore: verificationScore(faceMatch.Recommendation.Value),
	}
	manual := faceMatch.HasPassed(vendor.SubCheckManualFaceMatch)

	if !evidence.Failed() {
		method := methodVisual
		if chip {
			method = methodCrypto
		}
		evidence.CheckDetails = []CheckDetail{
			{CheckMethod: method, Txn: txn, IdentityCheckPolicy: policyPublished},
			faceCheck(manual, txn),
		}
		return evidence, nil, nil
	}

	reasons := contraIndicators(faceMatch.Recommendation, authenticity.Recommendation)
	for _, r := range reasons {
		evidence.CI = append(evidence.CI, r.CI)
	}
	evidence.FailedCheckDetails = []CheckDetail{
		{CheckMethod: methodCrypto, IdentityCheckPolicy: policyPublished},
		faceCheck(manual, ""),
	}
	return evidence, reasons, nil
}

func faceCheck(manual bool, txn string) CheckDetail {
	if manual {
		return CheckDetail{CheckMethod: methodPhoto, Txn: txn, PhotoVerificationProcessLevel: verificationLevel}
	}
	return CheckDetail{CheckMethod: methodBiometric, Txn: txn, BiometricVerificationProcessLevel: verificationLevel}
}

// hasValidChip is true when a chipped document type had its chip read and
// its certificate chain trusted.
func hasValidChip(documentType string, authenticity vendor.Report) bool {
	switch documentType {
	case TypePassport, TypeNationalID, TypeResidencePermit:
		return authenticity.HasPassed(vendor.SubCheckChipTrusted)
	default:
		return false
	}
}

func strengthScore(documentType, issuingCountry string, chip bool) (int, error) {
	if issuingCountry == HomeCountry {
		switch documentType {
		case TypePassport:
			if chip {
				return 4, nil
			}
			return 3, nil
		case TypeDrivingLicence:
			return 3, nil
		}
		return 0, fmt.Errorf("%w: %s issued by %s", ErrUnscorableDocument, documentType, issuingCountry)
	}
	switch documentType {
	case TypePassport, TypeDrivingLicence:
		return 3, nil
	case TypeNationalID:
		if chip {
			return 4, nil
		}
		return 3, nil
	case TypeResidencePermit:
		return 4, nil
	}
	return 0, fmt.Errorf("%w: %s issued by %s", ErrUnscorableDocument, documentType, issuingCountry)
}

func validityScore(recommendation string, chip bool) int {
	if recommendation != vendor.RecommendationApprove {
		return 0
	}
	if chip {
		return 3
	}
	return 2
}

func verificationScore(recommendation string) int {
	if recommendation == vendor.RecommendationApprove {
		return 3
	}
	return 0
}

func contraIndicators(faceMatch, authenticity vendor.Recommendation) []CIReason {
	var out []CIReason
	add := func(rec vendor.Recommendation, table map[string][]string) {
		if rec.Value != vendor.RecommendationReject {
			return
		}
		for _, ci := range table[rec.Reason] {
			out = append(out, CIReason{CI: ci, Reason: rec.Reason})
		}
	}
	add(faceMatch, faceMatchCI)
	add(authenticity, authenticityCI)
	return out
}
