// Package autopost turns business documents into journal entries.
package autopost

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/log"
)

// Ledger is the part of the accounting service the generators need.
type Ledger interface {
	FiscalConfig(ctx context.Context) (ledger.FiscalConfig, error)
	PostEntry(ctx context.Context, draft ledger.Draft) (*ledger.JournalEntry, error)
	EntryByOrigin(ctx context.Context, origin ledger.Origin, originID string) (*ledger.JournalEntry, error)
	ResolveOrCreateSubsidiaryAccount(ctx context.Context, partyID string, partyType ledger.PartyType) (*ledger.Account, error)
}

type Generators struct {
	ledger   Ledger
	validate *validator.Validate
	log      log.Logger
}

func New(l Ledger, lg log.Logger) *Generators {
	if lg == nil {
		lg = log.New("autopost")
	}
	return &Generators{ledger: l, validate: newValidator(), log: lg}
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// Decimals are compared as floats so gt/gte tags work on amounts.
	validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		d, ok := v.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})

	if err := validate.RegisterValidation("account_code", func(fl validator.FieldLevel) bool {
		_, err := ledger.Classify(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register account_code validation: %v", err))
	}
	return validate
}

func (g *Generators) check(payload any) error {
	err := g.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &ledger.ValidationError{Field: fe.Namespace(), Reason: reason}
	}
	return &ledger.ValidationError{Reason: err.Error()}
}

// partyRef is the account a document's counterparty is booked on.
type partyRef struct {
	Code      string
	PartyID   string
	PartyType ledger.PartyType
}

// resolveParty uses the explicit account when the document names one,
// otherwise the party's subsidiary account.
func (g *Generators) resolveParty(ctx context.Context, explicit, partyID string, partyType ledger.PartyType) (partyRef, error) {
	if explicit != "" {
		return partyRef{Code: explicit, PartyID: partyID, PartyType: partyType}, nil
	}
	acct, err := g.ledger.ResolveOrCreateSubsidiaryAccount(ctx, partyID, partyType)
	if err != nil {
		return partyRef{}, err
	}
	return partyRef{Code: acct.Code, PartyID: partyID, PartyType: partyType}, nil
}

// run is the common generator pipeline: payload validation, the automatic
// posting switch, the lookup of an entry already posted for the document,
// line building, a balance re-check and the posting itself. A disabled
// switch yields (nil, nil).
func (g *Generators) run(ctx context.Context, payload any, origin ledger.Origin, originID string,
	build func(cfg ledger.FiscalConfig) (ledger.Draft, error)) (*ledger.JournalEntry, error) {
	if err := g.check(payload); err != nil {
		return nil, err
	}
	cfg, err := g.ledger.FiscalConfig(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := g.generate(ctx, cfg, origin, originID, build)
	if errors.Is(err, ledger.ErrAutomaticPostingDisabled) {
		g.log.Debug("automatic posting disabled, document skipped")
		return nil, nil
	}
	return entry, err
}

func (g *Generators) generate(ctx context.Context, cfg ledger.FiscalConfig, origin ledger.Origin, originID string,
	build func(cfg ledger.FiscalConfig) (ledger.Draft, error)) (*ledger.JournalEntry, error) {
	if !cfg.AutoPosting {
		return nil, ledger.ErrAutomaticPostingDisabled
	}
	// A document already booked is returned as is, whatever the current
	// defaults would produce now.
	existing, err := g.ledger.EntryByOrigin(ctx, origin, originID)
	switch {
	case err == nil:
		existing.Existing = true
		g.log.Debug("document already posted", "origin", origin, "origin_id", originID, "number", existing.Number)
		return existing, nil
	case !errors.Is(err, ledger.ErrEntryNotFound):
		return nil, err
	}
	draft, err := build(cfg)
	if err != nil {
		return nil, err
	}
	if totals := ledger.ComputeTotals(draft.Lines); !totals.Balanced {
		return nil, &ledger.UnbalancedGeneratedEntryError{Origin: draft.Origin, OriginID: draft.OriginID, Totals: totals}
	}
	entry, err := g.ledger.PostEntry(ctx, draft)
	if err != nil {
		return nil, err
	}
	if !entry.Existing {
		g.log.Info("document posted", "origin", entry.Origin, "origin_id", entry.OriginID, "number", entry.Number)
	}
	return entry, nil
}

func debit(code string, amount decimal.Decimal) ledger.DraftLine {
	return ledger.DraftLine{AccountCode: code, Debit: ledger.Round2(amount), Credit: decimal.Zero}
}

func credit(code string, amount decimal.Decimal) ledger.DraftLine {
	return ledger.DraftLine{AccountCode: code, Debit: decimal.Zero, Credit: ledger.Round2(amount)}
}

func (p partyRef) apply(l ledger.DraftLine, docRef string) ledger.DraftLine {
	if p.PartyID != "" {
		l.PartyID = p.PartyID
		l.PartyType = p.PartyType
	}
	l.DocumentRef = docRef
	return l
}

func required(code, role string) (string, error) {
	if code == "" {
		return "", &ledger.MissingDefaultAccountError{Role: role}
	}
	return code, nil
}
