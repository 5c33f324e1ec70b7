// Package delivery sends the terminal message for a session to the relying
// party: either the signed credential or an access_denied error.
package delivery

import (
	"encoding/json"

	id "vcissuer/pkg/domain"
)

const (
	KindCredential = "credential"
	KindError      = "error"

	accessDenied = "access_denied"
)

// Outcome is one relying-party message. Build it with Credential or Failure.
type Outcome struct {
	SessionID id.SessionID
	Subject   string
	State     string
	// Exactly one of these is set.
	CredentialJWT    string
	ErrorDescription string
}

func Credential(sessionID id.SessionID, subject, state, jwt string) Outcome {
	return Outcome{SessionID: sessionID, Subject: subject, State: state, CredentialJWT: jwt}
}

func Failure(sessionID id.SessionID, subject, state, description string) Outcome {
	return Outcome{SessionID: sessionID, Subject: subject, State: state, ErrorDescription: description}
}

func (o Outcome) Kind() string {
	if o.CredentialJWT != "" {
		return KindCredential
	}
	return KindError
}

type credentialBody struct {
	Sub           string   `json:"sub"`
	State         string   `json:"state"`
	CredentialJWT []string `json:"https://vocab.account.gov.uk/v1/credentialJWT"`
}

type errorBody struct {
	Sub              string `json:"sub"`
	State            string `json:"state"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// MarshalJSON renders the wire body. The session id is carried as the
// message key, never in the body.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Kind() == KindCredential {
		return json.Marshal(credentialBody{Sub: o.Subject, State: o.State, CredentialJWT: []string{o.CredentialJWT}})
	}
	return json.Marshal(errorBody{Sub: o.Subject, State: o.State, Error: accessDenied, ErrorDescription: o.ErrorDescription})
}
