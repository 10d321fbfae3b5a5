package accounting

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

// ResolveOrCreateSubsidiaryAccount returns the party's own account,
// creating it with the next free code under the configured prefix. Calls
// for the same party are collapsed in-process; across writers the unique
// party index turns a lost race into a retried conflict, so every party
// ends up with exactly one account.
func (s *Service) ResolveOrCreateSubsidiaryAccount(ctx context.Context, partyID string, partyType ledger.PartyType) (*ledger.Account, error) {
	if partyID == "" {
		return nil, &ledger.ValidationError{Field: "party_id", Reason: "party id is required"}
	}
	if !ledger.ValidPartyType(partyType) {
		return nil, &ledger.ValidationError{Field: "party_type", Reason: fmt.Sprintf("unknown party type %q", partyType)}
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := s.subsidiaries.DoChan(string(partyType)+":"+partyID, func() (any, error) {
		var acct *ledger.Account
		err := s.withRetry(shared, "subsidiary", func() error {
			var err error
			acct, err = s.resolveSubsidiary(shared, partyID, partyType)
			return err
		})
		return acct, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ledger.Account), nil
	}
}

func (s *Service) resolveSubsidiary(ctx context.Context, partyID string, partyType ledger.PartyType) (*ledger.Account, error) {
	var acct *ledger.Account
	created := false
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		existing, err := tx.SubsidiaryAccount(ctx, partyType, partyID)
		if err == nil {
			acct = existing
			return nil
		}
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			return err
		}

		cfg, err := s.fiscalConfigTx(ctx, tx)
		if err != nil {
			return err
		}
		rule, ok := cfg.Subsidiary[partyType]
		if !ok {
			return &ledger.MissingDefaultAccountError{Role: "subsidiary " + string(partyType)}
		}

		info, err := s.parties.PartyDisplayInfo(ctx, partyID, partyType)
		if err != nil {
			return err
		}

		seq, err := nextSubsidiarySeq(ctx, tx, rule)
		if err != nil {
			return err
		}

		postable := true
		acct, err = ledger.NewAccount(rule.Code(seq), info.Name, &postable)
		if err != nil {
			return err
		}
		acct.PartyID = partyID
		acct.PartyType = partyType
		acct.PartyName = info.Name
		acct.PartyTaxID = info.TaxID
		if err := tx.InsertAccount(ctx, acct); err != nil {
			// A concurrent writer may have taken this code first.
			if errors.Is(err, ledger.ErrDuplicateAccount) {
				return fmt.Errorf("%w: %w: %v", ledger.ErrConcurrencyConflict, store.ErrKeyConflict, err)
			}
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.SubsidiaryAccounts.WithLabelValues(s.tenant, string(partyType)).Inc()
		s.log.Info("subsidiary account created", "code", acct.Code, "party_type", partyType, "party_id", partyID)
	}
	return acct, nil
}

func nextSubsidiarySeq(ctx context.Context, tx *store.Tx, rule ledger.SubsidiaryRule) (int64, error) {
	maxCode, err := tx.MaxSubsidiaryCode(ctx, rule)
	if err != nil {
		return 0, err
	}
	var seq int64 = 1
	if maxCode != "" {
		last, err := strconv.ParseInt(maxCode[len(rule.Prefix):], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse subsidiary code %s: %w", maxCode, err)
		}
		seq = last + 1
	}
	if seq > rule.Capacity() {
		return 0, &ledger.ValidationError{Field: "subsidiary", Reason: fmt.Sprintf("prefix %s is full", rule.Prefix)}
	}
	return seq, nil
}
