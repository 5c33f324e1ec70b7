// Package claims stores the identity a user claimed at the start of a
// journey. Claims are written once and then only read, as the fallback name
// source and cross-check for vendor evidence.
package claims

import (
	"fmt"

	"vcissuer/internal/session/models"
	"vcissuer/pkg/platform/sentinel"
)

var (
	errClaimNotFound = fmt.Errorf("identity claim not found: %w", sentinel.ErrNotFound)
	errClaimExists   = fmt.Errorf("identity claim already recorded: %w", sentinel.ErrConditionFailed)
)

func validateClaim(claim *models.IdentityClaim) error {
	if claim == nil {
		return fmt.Errorf("identity claim is required: %w", sentinel.ErrInvalidInput)
	}
	if claim.SessionID.IsNil() {
		return fmt.Errorf("identity claim session id is required: %w", sentinel.ErrInvalidInput)
	}
	return nil
}

func cloneClaim(c *models.IdentityClaim) *models.IdentityClaim {
	out := *c
	out.Names = make([]models.Name, len(c.Names))
	for i, n := range c.Names {
		out.Names[i] = models.Name{NameParts: append([]models.NamePart(nil), n.NameParts...)}
	}
	out.BirthDates = append([]string(nil), c.BirthDates...)
	out.Addresses = append([]models.PostalAddress(nil), c.Addresses...)
	return &out
}
