package audit

import (
	"encoding/json"
	"time"

	"vcissuer/internal/credential"
	"vcissuer/internal/session/models"
)

// EventName identifies an audit record type.
type EventName string

const (
	EventCRIStart               EventName = "CRI_START"
	EventVendorResponseReceived EventName = "VENDOR_RESPONSE_RECEIVED"
	EventVCIssued               EventName = "VC_ISSUED"
	EventAuthCodeIssued         EventName = "AUTH_CODE_ISSUED"
	EventCRIEnd                 EventName = "CRI_END"
)

// Event is one record on the audit stream. Extensions and Restricted are
// event specific; Restricted holds personal data and is only set where the
// stream consumer is cleared to receive it.
type Event struct {
	Name        EventName
	Time        time.Time
	ComponentID string
	User        User
	Extensions  any
	Restricted  any
}

type User struct {
	UserID               string `json:"user_id"`
	PersistentSessionID  string `json:"persistent_session_id,omitempty"`
	SessionID            string `json:"session_id"`
	GovukSigninJourneyID string `json:"govuk_signin_journey_id,omitempty"`
	IPAddress            string `json:"ip_address,omitempty"`
}

type wireEvent struct {
	EventName        EventName `json:"event_name"`
	Timestamp        int64     `json:"timestamp"`
	EventTimestampMs int64     `json:"event_timestamp_ms"`
	ComponentID      string    `json:"component_id"`
	User             User      `json:"user"`
	Extensions       any       `json:"extensions,omitempty"`
	Restricted       any       `json:"restricted,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		EventName:        e.Name,
		Timestamp:        e.Time.Unix(),
		EventTimestampMs: e.Time.UnixMilli(),
		ComponentID:      e.ComponentID,
		User:             e.User,
		Extensions:       e.Extensions,
		Restricted:       e.Restricted,
	})
}

// NewEvent fills the fields every record carries from the session.
func NewEvent(name EventName, session *models.Session, issuer string) Event {
	return Event{
		Name:        name,
		ComponentID: issuer,
		User: User{
			UserID:               session.Subject,
			PersistentSessionID:  session.PersistentSessionID,
			SessionID:            session.ID.String(),
			GovukSigninJourneyID: session.ClientSessionID,
			IPAddress:            session.ClientIPAddress,
		},
	}
}

// TxnRef points at the vendor session behind an event.
type TxnRef struct {
	Txn string `json:"txn"`
}

// JourneyExtensions links an event to the relying party journey and the
// vendor session.
type JourneyExtensions struct {
	PreviousJourneyID string   `json:"previous_govuk_signin_journey_id"`
	Evidence          []TxnRef `json:"evidence"`
}

// IssuedEvidence mirrors the credential evidence plus the reasons behind
// each contra-indicator.
type IssuedEvidence struct {
	Type              string                   `json:"type"`
	Txn               string                   `json:"txn"`
	StrengthScore     int                      `json:"strengthScore"`
	ValidityScore     int                      `json:"validityScore"`
	VerificationScore int                      `json:"verificationScore"`
	CI                []string                 `json:"ci,omitempty"`
	CIReasons         []credential.CIReason    `json:"ciReasons,omitempty"`
	CheckDetails      []credential.CheckDetail `json:"checkDetails,omitempty"`
}

type VCIssuedExtensions struct {
	PreviousJourneyID string           `json:"previous_govuk_signin_journey_id"`
	Evidence          []IssuedEvidence `json:"evidence"`
}

// NewIssuedEvidence pairs e with the reasons ScoreEvidence returned.
func NewIssuedEvidence(e credential.Evidence, reasons []credential.CIReason) IssuedEvidence {
	return IssuedEvidence{
		Type:              e.Type,
		Txn:               e.Txn,
		StrengthScore:     e.StrengthScore,
		ValidityScore:     e.ValidityScore,
		VerificationScore: e.VerificationScore,
		CI:                e.CI,
		CIReasons:         reasons,
		CheckDetails:      e.CheckDetails,
	}
}
