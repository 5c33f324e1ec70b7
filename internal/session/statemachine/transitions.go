package statemachine

import (
	"context"
	"time"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

// SelectDocument records the document type the user chose.
func (m *Machine) SelectDocument(ctx context.Context, sessionID id.SessionID, documentType string) (*models.Session, error) {
	return m.Transition(ctx, sessionID, Transition{
		From:   []models.AuthState{models.StateSessionCreated},
		To:     models.StateDocumentSelected,
		Fields: models.Fields{DocumentSelected: &documentType},
	})
}

// RecordVendorSession stores the vendor session id used by the callback lookup.
func (m *Machine) RecordVendorSession(ctx context.Context, sessionID id.SessionID, vendorSessionID id.VendorSessionID) (*models.Session, error) {
	return m.Transition(ctx, sessionID, Transition{
		From:   []models.AuthState{models.StateSessionCreated, models.StateDocumentSelected},
		To:     models.StateVendorSessionCreated,
		Fields: models.Fields{VendorSessionID: &vendorSessionID},
		Check: func(s *models.Session) error {
			if !s.VendorSessionID.IsNil() {
				return ErrVendorSessionSet
			}
			return nil
		},
	})
}

// RecordDataReceived is the single intermediate step of the claimed identity flow.
func (m *Machine) RecordDataReceived(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return m.Transition(ctx, sessionID, Transition{
		From: []models.AuthState{models.StateSessionCreated},
		To:   models.StateDataReceived,
	})
}

func (m *Machine) IssueAuthorizationCode(ctx context.Context, sessionID id.SessionID, code string, expiry time.Time) (*models.Session, error) {
	return m.Transition(ctx, sessionID, Transition{
		From: []models.AuthState{
			models.StateVendorSessionCreated,
			models.StateDocumentSelected,
			models.StateDataReceived,
		},
		To: models.StateAuthCodeIssued,
		Fields: models.Fields{
			AuthorizationCode:       &code,
			AuthorizationCodeExpiry: &expiry,
		},
	})
}

// IssueAccessToken writes the token and clears the code it was exchanged for.
func (m *Machine) IssueAccessToken(ctx context.Context, sessionID id.SessionID, token string, expiry time.Time) (*models.Session, error) {
	return m.Transition(ctx, sessionID, Transition{
		From: []models.AuthState{models.StateAuthCodeIssued},
		To:   models.StateAccessTokenIssued,
		Fields: models.Fields{
			AccessToken:       &token,
			AccessTokenExpiry: &expiry,
		}.ClearAuthorizationCode(),
	})
}

// IssuableStates are the states a credential can be issued from.
var IssuableStates = []models.AuthState{models.StateAuthCodeIssued, models.StateAccessTokenIssued}

func (m *Machine) MarkCredentialIssued(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return m.Transition(ctx, sessionID, Transition{
		From: IssuableStates,
		To:   models.StateCredentialIssued,
	})
}

// MarkIssuanceFailed records that issuance was attempted and failed. Only a
// session that could have been issued can fail; earlier journeys are left
// untouched.
func (m *Machine) MarkIssuanceFailed(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return m.Transition(ctx, sessionID, Transition{
		From: IssuableStates,
		To:   models.StateIssuanceFailed,
	})
}
