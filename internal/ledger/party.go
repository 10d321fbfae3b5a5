package ledger

import "context"

// PartyInfo is the display data cached on subsidiary accounts and lines.
type PartyInfo struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
}

// PartyDirectory is the narrow contract with the customer/supplier modules.
type PartyDirectory interface {
	PartyDisplayInfo(ctx context.Context, partyID string, partyType PartyType) (PartyInfo, error)
}
