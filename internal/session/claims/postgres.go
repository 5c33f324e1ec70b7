package claims

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

// PostgresStore persists claims in the identity_claims table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type namePartRow struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

type addressRow struct {
	BuildingNumber  string `json:"buildingNumber,omitempty"`
	BuildingName    string `json:"buildingName,omitempty"`
	StreetName      string `json:"streetName,omitempty"`
	AddressLocality string `json:"addressLocality,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
	AddressCountry  string `json:"addressCountry,omitempty"`
}

func encodeNames(names []models.Name) ([]byte, error) {
	rows := make([][]namePartRow, len(names))
	for i, n := range names {
		rows[i] = make([]namePartRow, len(n.NameParts))
		for j, p := range n.NameParts {
			rows[i][j] = namePartRow{Value: p.Value, Type: string(p.Type)}
		}
	}
	return json.Marshal(rows)
}

func decodeNames(raw []byte) ([]models.Name, error) {
	var rows [][]namePartRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	names := make([]models.Name, len(rows))
	for i, parts := range rows {
		names[i].NameParts = make([]models.NamePart, len(parts))
		for j, p := range parts {
			names[i].NameParts[j] = models.NamePart{Value: p.Value, Type: models.NamePartType(p.Type)}
		}
	}
	return names, nil
}

func encodeAddresses(addresses []models.PostalAddress) ([]byte, error) {
	rows := make([]addressRow, len(addresses))
	for i, a := range addresses {
		rows[i] = addressRow(a)
	}
	return json.Marshal(rows)
}

func decodeAddresses(raw []byte) ([]models.PostalAddress, error) {
	var rows []addressRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	addresses := make([]models.PostalAddress, len(rows))
	for i, r := range rows {
		addresses[i] = models.PostalAddress(r)
	}
	return addresses, nil
}

func (s *PostgresStore) Save(ctx context.Context, claim *models.IdentityClaim) error {
	if err := validateClaim(claim); err != nil {
		return err
	}
	names, err := encodeNames(claim.Names)
	if err != nil {
		return fmt.Errorf("encode names: %w", err)
	}
	addresses, err := encodeAddresses(claim.Addresses)
	if err != nil {
		return fmt.Errorf("encode addresses: %w", err)
	}
	birthDates := claim.BirthDates
	if birthDates == nil {
		birthDates = []string{}
	}

	query := `
		INSERT INTO identity_claims (session_id, names, birth_dates, addresses, email_address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(claim.SessionID),
		names,
		pq.Array(birthDates),
		addresses,
		claim.EmailAddress,
	)
	if err != nil {
		return fmt.Errorf("save identity claim: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errClaimExists
	}
	return nil
}

func (s *PostgresStore) FindBySessionID(ctx context.Context, sessionID id.SessionID) (*models.IdentityClaim, error) {
	query := `
		SELECT names, birth_dates, addresses, email_address
		FROM identity_claims
		WHERE session_id = $1
	`
	var (
		names, addresses []byte
		birthDates       []string
		email            sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(sessionID)).
		Scan(&names, pq.Array(&birthDates), &addresses, &email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errClaimNotFound
		}
		return nil, fmt.Errorf("find identity claim: %w", err)
	}

	claim := &models.IdentityClaim{
		SessionID:    sessionID,
		BirthDates:   birthDates,
		EmailAddress: email.String,
	}
	if claim.Names, err = decodeNames(names); err != nil {
		return nil, fmt.Errorf("decode names: %w", err)
	}
	if claim.Addresses, err = decodeAddresses(addresses); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	return claim, nil
}
