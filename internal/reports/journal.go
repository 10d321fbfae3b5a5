package reports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

type JournalQuery struct {
	DateRange
	AccountPrefix string
	Origin        ledger.Origin
	IncludeVoided bool
	Page          int
	PageSize      int
}

type JournalTotals struct {
	TotalDebe   decimal.Decimal `json:"totalDebe"`
	TotalHaber  decimal.Decimal `json:"totalHaber"`
	NumAsientos int64           `json:"numAsientos"`
	NumLineas   int64           `json:"numLineas"`
	Cuadrado    bool            `json:"cuadrado"`
}

// JournalReport is the Libro Diario.
type JournalReport struct {
	Desde        string                `json:"desde"`
	Hasta        string                `json:"hasta"`
	Asientos     []ledger.JournalEntry `json:"asientos"`
	Pagina       int                   `json:"pagina"`
	TamanoPagina int                   `json:"tamanoPagina"`
	TotalPaginas int                   `json:"totalPaginas"`
	Totales      JournalTotals         `json:"totales"`
}

// Journal lists entries chronologically, one page at a time. Totales
// cover the whole filtered range regardless of the page.
func (e *Engine) Journal(ctx context.Context, q JournalQuery) (*JournalReport, error) {
	r, err := q.DateRange.validate()
	if err != nil {
		return nil, err
	}
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	f := r.filter()
	f.CodePrefix = q.AccountPrefix
	f.Origin = q.Origin
	f.IncludeVoided = q.IncludeVoided

	rep := &JournalReport{
		Desde:        r.From.Format(ledger.DateLayout),
		Hasta:        r.To.Format(ledger.DateLayout),
		Pagina:       page,
		TamanoPagina: size,
	}
	err = e.store.Snapshot(ctx, func(tx *store.Tx) error {
		totals, err := tx.JournalTotals(ctx, f)
		if err != nil {
			return err
		}
		rep.Totales = JournalTotals{
			TotalDebe:   totals.Debit,
			TotalHaber:  totals.Credit,
			NumAsientos: totals.Entries,
			NumLineas:   totals.Lines,
			Cuadrado:    ledger.WithinTolerance(totals.Debit, totals.Credit),
		}
		rep.TotalPaginas = int((totals.Entries + int64(size) - 1) / int64(size))

		rep.Asientos, err = tx.JournalEntries(ctx, f, size, (page-1)*size)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rep.Asientos == nil {
		rep.Asientos = []ledger.JournalEntry{}
	}
	return rep, nil
}
