package issuance

import (
	"strings"

	id "vcissuer/pkg/domain"
)

// CallbackRequest is the vendor's session completion notification.
type CallbackRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Topic     string `json:"topic"`
}

func (r *CallbackRequest) Normalize() {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.Topic = strings.TrimSpace(r.Topic)
}

type Status string

const (
	StatusIssued       Status = "issued"
	StatusDuplicate    Status = "duplicate"
	StatusUnauthorized Status = "unauthorized"
)

// Result is returned for every callback that reached a known session and
// did not hit an infrastructure fault.
type Result struct {
	Status    Status
	SessionID id.SessionID
	Message   string
}
