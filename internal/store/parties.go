package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simonvc/contaledger/internal/ledger"
)

// Party is the display record kept for a customer or supplier.
type Party struct {
	Type  ledger.PartyType `json:"type" db:"party_type"`
	ID    string           `json:"id" db:"party_id"`
	Name  string           `json:"name" db:"name"`
	TaxID string           `json:"tax_id" db:"tax_id"`
}

func (t *Tx) UpsertParty(ctx context.Context, p Party) error {
	if !ledger.ValidPartyType(p.Type) {
		return &ledger.ValidationError{Field: "party_type", Reason: fmt.Sprintf("unknown party type %q", p.Type)}
	}
	if p.ID == "" || p.Name == "" {
		return &ledger.ValidationError{Field: "party", Reason: "id and name are required"}
	}
	_, err := t.tx.NamedExecContext(ctx,
		`INSERT INTO parties (party_type, party_id, name, tax_id) VALUES (:party_type, :party_id, :name, :tax_id)
		ON CONFLICT (party_type, party_id) DO UPDATE SET name = excluded.name, tax_id = excluded.tax_id`, p)
	if err != nil {
		return fmt.Errorf("upsert party: %w", err)
	}
	return nil
}

func (t *Tx) Party(ctx context.Context, partyType ledger.PartyType, partyID string) (*Party, error) {
	var p Party
	err := t.tx.GetContext(ctx, &p,
		`SELECT party_type, party_id, name, tax_id FROM parties WHERE party_type = ? AND party_id = ?`,
		string(partyType), partyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ledger.ErrPartyNotFound, partyType, partyID)
	}
	if err != nil {
		return nil, fmt.Errorf("get party: %w", err)
	}
	return &p, nil
}

// UpsertParty records party display data outside any other transaction.
func (s *Store) UpsertParty(ctx context.Context, p Party) error {
	return s.WithTx(ctx, func(tx *Tx) error { return tx.UpsertParty(ctx, p) })
}

// PartyDisplayInfo implements ledger.PartyDirectory.
func (s *Store) PartyDisplayInfo(ctx context.Context, partyID string, partyType ledger.PartyType) (ledger.PartyInfo, error) {
	var info ledger.PartyInfo
	err := s.Snapshot(ctx, func(tx *Tx) error {
		p, err := tx.Party(ctx, partyType, partyID)
		if err != nil {
			return err
		}
		info = ledger.PartyInfo{Name: p.Name, TaxID: p.TaxID}
		return nil
	})
	return info, err
}
