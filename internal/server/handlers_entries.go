package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

type EntryLineRequest struct {
	AccountCode string           `json:"account_code"`
	Debit       decimal.Decimal  `json:"debit"`
	Credit      decimal.Decimal  `json:"credit"`
	Memo        string           `json:"memo,omitempty"`
	PartyID     string           `json:"party_id,omitempty"`
	PartyType   ledger.PartyType `json:"party_type,omitempty"`
	DocumentRef string           `json:"document_ref,omitempty"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
}

// EntryRequest is the body of a manual posting.
type EntryRequest struct {
	Date        time.Time          `json:"date"`
	Description string             `json:"description"`
	Origin      ledger.Origin      `json:"origin,omitempty"`
	OriginID    string             `json:"origin_id,omitempty"`
	CreatedBy   string             `json:"created_by,omitempty"`
	Lines       []EntryLineRequest `json:"lines"`
}

func (req EntryRequest) draft() ledger.Draft {
	d := ledger.Draft{
		Date:        req.Date,
		Description: req.Description,
		Origin:      req.Origin,
		OriginID:    req.OriginID,
		CreatedBy:   req.CreatedBy,
	}
	for _, l := range req.Lines {
		d.Lines = append(d.Lines, ledger.DraftLine{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Memo:        l.Memo,
			PartyID:     l.PartyID,
			PartyType:   l.PartyType,
			DocumentRef: l.DocumentRef,
			DueDate:     l.DueDate,
		})
	}
	return d
}

func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := service(r).PostEntry(r.Context(), req.draft())
	if err != nil {
		fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if entry.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, entry)
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EntryFilter{
		Origin: ledger.Origin(q.Get("origin")),
		Status: ledger.Status(q.Get("status")),
	}
	var err error
	if filter.FiscalYear, err = queryInt(r, "fiscal_year"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, err)
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, err)
		return
	}
	if !from.IsZero() {
		filter.From = &from
	}
	if !to.IsZero() {
		filter.To = &to
	}

	entries, err := service(r).ListEntries(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []ledger.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := service(r).GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) voidEntry(w http.ResponseWriter, r *http.Request) {
	var req accounting.VoidRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := service(r).VoidEntry(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
