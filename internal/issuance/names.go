package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vcissuer/internal/credential"
	"vcissuer/internal/session/models"
	"vcissuer/internal/vendor"
	"vcissuer/pkg/platform/sentinel"
	str "vcissuer/pkg/string"
)

// resolveNames prefers the names read from the document. When the document
// lacks a given or family name the claimed name is used instead, but only if
// it matches whatever name text the document did carry.
func (s *Service) resolveNames(ctx context.Context, log *slog.Logger, session *models.Session, fields *vendor.DocumentFields) ([]credential.NamePart, error) {
	given := str.CollapseSpace(fields.GivenNames)
	family := str.CollapseSpace(fields.FamilyName)
	full := fields.FullName

	if str.IsBlank(given) && str.IsBlank(family) && str.IsBlank(full) {
		return nil, ErrMissingName
	}
	if !str.IsBlank(given) && !str.IsBlank(family) {
		return credential.NamePartsFrom(given, family), nil
	}

	log.InfoContext(ctx, "document name incomplete, using claimed name",
		"missing_given_names", str.IsBlank(given),
		"missing_family_name", str.IsBlank(family),
	)
	claim, err := s.claims.FindBySessionID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: no claimed identity", ErrMissingName)
		}
		return nil, fmt.Errorf("load claimed identity: %w", err)
	}
	if len(claim.Names) == 0 || len(claim.Names[0].NameParts) == 0 {
		return nil, fmt.Errorf("%w: claimed identity has no name", ErrMissingName)
	}
	claimed := claim.Names[0]

	documentName := full
	if str.IsBlank(documentName) {
		documentName = given + " " + family
	}
	claimedName := strings.Join(append(claimed.GivenNames(), claimed.FamilyNames()...), " ")
	if !str.EqualFoldSpace(documentName, claimedName) {
		return nil, ErrNameMismatch
	}

	parts := make([]credential.NamePart, 0, len(claimed.NameParts))
	for _, p := range claimed.NameParts {
		parts = append(parts, credential.NamePart{Value: p.Value, Type: string(p.Type)})
	}
	return parts, nil
}
