package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

// VoidRequest describes a void. Date defaults to the original entry date
// and must fall in the same fiscal year.
type VoidRequest struct {
	Reason string     `json:"reason"`
	Date   *time.Time `json:"date,omitempty"`
	By     string     `json:"by,omitempty"`
}

type VoidResult struct {
	Original *ledger.JournalEntry `json:"original"`
	Contra   *ledger.JournalEntry `json:"contra"`
}

// PostEntry validates, numbers and records an entry and updates the balance
// of every account it touches, all in one write transaction. A draft with
// an automatic origin and an OriginID is posted at most once: later calls
// return the first entry with Existing set.
func (s *Service) PostEntry(ctx context.Context, draft ledger.Draft) (*ledger.JournalEntry, error) {
	start := s.now()
	if err := draft.Validate(); err != nil {
		s.metrics.PostFailures.WithLabelValues(s.tenant, failureReason(err)).Inc()
		return nil, err
	}
	draft.Date = ledger.DateOnly(draft.Date)

	var entry *ledger.JournalEntry
	err := s.withRetry(ctx, "post", func() error {
		return s.store.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			entry, err = s.postTx(ctx, tx, &draft, false)
			return err
		})
	})
	if err != nil {
		s.metrics.PostFailures.WithLabelValues(s.tenant, failureReason(err)).Inc()
		s.log.Warn("posting rejected", "origin", draft.Origin, "origin_id", draft.OriginID, "err", err)
		return nil, err
	}

	if entry.Existing {
		s.metrics.EntriesIdempotent.WithLabelValues(s.tenant, string(entry.Origin)).Inc()
		s.log.Debug("entry already posted", "origin", entry.Origin, "origin_id", entry.OriginID, "number", entry.Number)
		return entry, nil
	}
	s.metrics.EntriesPosted.WithLabelValues(s.tenant, string(entry.Origin)).Inc()
	s.metrics.PostDuration.WithLabelValues(s.tenant).Observe(s.now().Sub(start).Seconds())
	s.log.Info("entry posted", "number", entry.Number, "fiscal_year", entry.FiscalYear, "origin", entry.Origin,
		"debit", entry.TotalDebit.StringFixed(2))
	return entry, nil
}

func isAutomatic(d *ledger.Draft) bool {
	return d.Origin != ledger.OriginManual && d.OriginID != ""
}

// postTx is the posting pipeline. It must run inside a write transaction.
// skipLocks is only set by year-end processing, which locks the year itself.
func (s *Service) postTx(ctx context.Context, tx *store.Tx, d *ledger.Draft, skipLocks bool) (*ledger.JournalEntry, error) {
	if isAutomatic(d) {
		existing, err := tx.EntryByOrigin(ctx, d.Origin, d.OriginID)
		if err == nil {
			existing.Existing = true
			return existing, nil
		}
		if !errors.Is(err, ledger.ErrEntryNotFound) {
			return nil, err
		}
	}

	cfg, err := s.fiscalConfigTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		codes = append(codes, l.AccountCode)
	}
	accounts, err := tx.AccountsByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		acct, ok := accounts[code]
		if !ok {
			return nil, &ledger.AccountNotFoundError{Code: code}
		}
		if !acct.Postable {
			return nil, &ledger.NonPostableAccountError{Code: code}
		}
		if !acct.Active {
			return nil, &ledger.ValidationError{Field: "account", Reason: fmt.Sprintf("account %s is inactive", code)}
		}
	}

	totals := ledger.ComputeTotals(d.Lines)
	if !totals.Balanced && !cfg.AllowUnbalanced {
		return nil, &ledger.UnbalancedEntryError{
			TotalDebit:  totals.Debit,
			TotalCredit: totals.Credit,
			Difference:  totals.Difference,
		}
	}

	year := cfg.FiscalYear(d.Date)
	month := int(d.Date.Month())
	if cfg.EnforcePeriodLocks && !skipLocks {
		locked, err := tx.IsPeriodLocked(ctx, year, month)
		if err != nil {
			return nil, err
		}
		if locked {
			return nil, &ledger.ClosedPeriodError{Year: year, Month: month}
		}
	}

	var number int64
	if cfg.YearlyNumberReset {
		number, err = tx.NextYearNumber(ctx, year)
	} else {
		number, err = tx.NextGlobalNumber(ctx)
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entry := &ledger.JournalEntry{
		Number:      number,
		FiscalYear:  year,
		Date:        d.Date,
		Period:      month,
		Description: d.Description,
		Lines:       make([]ledger.JournalLine, len(d.Lines)),
		TotalDebit:  totals.Debit,
		TotalCredit: totals.Credit,
		Difference:  totals.Difference,
		Balanced:    totals.Balanced,
		Origin:      d.Origin,
		OriginID:    d.OriginID,
		Status:      ledger.StatusPosted,
		Locked:      d.Locked,
		Reverses:    d.Reverses,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   now,
	}
	for i, dl := range d.Lines {
		acct := accounts[dl.AccountCode]
		l := ledger.JournalLine{
			AccountID:   acct.ID,
			AccountCode: acct.Code,
			AccountName: acct.Name,
			Debit:       ledger.Round2(dl.Debit),
			Credit:      ledger.Round2(dl.Credit),
			Memo:        dl.Memo,
			PartyID:     dl.PartyID,
			PartyType:   dl.PartyType,
			PartyName:   dl.PartyName,
			PartyTaxID:  dl.PartyTaxID,
			DocumentRef: dl.DocumentRef,
			DueDate:     dl.DueDate,
		}
		if acct.PartyID != "" && (l.PartyID == "" || l.PartyID == acct.PartyID) {
			l.PartyID, l.PartyType = acct.PartyID, acct.PartyType
			if l.PartyName == "" {
				l.PartyName, l.PartyTaxID = acct.PartyName, acct.PartyTaxID
			}
		}
		entry.Lines[i] = l
	}

	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}
	for _, l := range entry.Lines {
		if err := tx.ApplyDelta(ctx, l.AccountID, l.Debit, l.Credit, now); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// VoidEntry cancels a posted entry with a locked contra entry that swaps
// every line, and marks the original as voided. Voiding twice fails with
// AlreadyVoidedError.
func (s *Service) VoidEntry(ctx context.Context, id string, req VoidRequest) (*VoidResult, error) {
	var res *VoidResult
	err := s.withRetry(ctx, "void", func() error {
		return s.store.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			res, err = s.voidTx(ctx, tx, id, req)
			return err
		})
	})
	if err != nil {
		s.metrics.PostFailures.WithLabelValues(s.tenant, failureReason(err)).Inc()
		return nil, err
	}
	s.metrics.EntriesVoided.WithLabelValues(s.tenant).Inc()
	s.log.Info("entry voided", "number", res.Original.Number, "contra", res.Contra.Number, "reason", req.Reason)
	return res, nil
}

func (s *Service) voidTx(ctx context.Context, tx *store.Tx, id string, req VoidRequest) (*VoidResult, error) {
	orig, err := tx.EntryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.Status == ledger.StatusVoided || orig.VoidedBy != "" {
		return nil, &ledger.AlreadyVoidedError{EntryID: orig.ID, Number: orig.Number}
	}
	if orig.Status != ledger.StatusPosted {
		return nil, &ledger.ValidationError{Field: "status", Reason: fmt.Sprintf("entry %d is %s", orig.Number, orig.Status)}
	}
	if orig.Reverses != "" {
		return nil, &ledger.ValidationError{Field: "entry", Reason: fmt.Sprintf("entry %d is itself a contra entry", orig.Number)}
	}

	cfg, err := s.fiscalConfigTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	date := orig.Date
	if req.Date != nil {
		date = ledger.DateOnly(*req.Date)
		if cfg.FiscalYear(date) != orig.FiscalYear {
			return nil, &ledger.ValidationError{Field: "date", Reason: fmt.Sprintf("void date must fall in fiscal year %d", orig.FiscalYear)}
		}
	}

	draft := ledger.ContraDraft(orig, date, req.Reason, req.By)
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	contra, err := s.postTx(ctx, tx, &draft, false)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ok, err := tx.MarkVoided(ctx, orig.ID, contra.ID, req.Reason, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ledger.AlreadyVoidedError{EntryID: orig.ID, Number: orig.Number}
	}
	orig.Status = ledger.StatusVoided
	orig.VoidedBy = contra.ID
	orig.VoidReason = req.Reason
	orig.VoidedAt = &now
	return &VoidResult{Original: orig, Contra: contra}, nil
}

func (s *Service) GetEntry(ctx context.Context, id string) (*ledger.JournalEntry, error) {
	var e *ledger.JournalEntry
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		var err error
		e, err = tx.EntryByID(ctx, id)
		return err
	})
	return e, err
}

// EntryByOrigin returns the posted entry generated from a business
// document, or an EntryNotFound error.
func (s *Service) EntryByOrigin(ctx context.Context, origin ledger.Origin, originID string) (*ledger.JournalEntry, error) {
	var e *ledger.JournalEntry
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		var err error
		e, err = tx.EntryByOrigin(ctx, origin, originID)
		return err
	})
	return e, err
}

func (s *Service) ListEntries(ctx context.Context, filter store.EntryFilter) ([]ledger.JournalEntry, error) {
	var entries []ledger.JournalEntry
	err := s.store.Snapshot(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = tx.ListEntries(ctx, filter)
		return err
	})
	return entries, err
}
