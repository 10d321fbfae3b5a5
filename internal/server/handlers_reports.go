package server

import (
	"net/http"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/reports"
)

func engine(r *http.Request) *reports.Engine {
	return reports.New(service(r).Store())
}

// dateRange reads desde/hasta (or from/to) as an inclusive range.
func dateRange(r *http.Request) (reports.DateRange, error) {
	from, err := queryDate(r, firstParam(r, "desde", "from"))
	if err != nil {
		return reports.DateRange{}, err
	}
	to, err := queryDate(r, firstParam(r, "hasta", "to"))
	if err != nil {
		return reports.DateRange{}, err
	}
	return reports.DateRange{From: from, To: to}, nil
}

// firstParam returns whichever of the parameter names is present.
func firstParam(r *http.Request, names ...string) string {
	for _, n := range names {
		if r.URL.Query().Has(n) {
			return n
		}
	}
	return names[0]
}

func (s *Server) journalReport(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := reports.JournalQuery{
		DateRange:     dr,
		AccountPrefix: r.URL.Query().Get("account"),
		Origin:        ledger.Origin(r.URL.Query().Get("origin")),
		IncludeVoided: queryBool(r, "include_voided"),
	}
	if q.Page, err = queryInt(r, "page"); err != nil {
		writeError(w, err)
		return
	}
	if q.PageSize, err = queryInt(r, "page_size"); err != nil {
		writeError(w, err)
		return
	}
	rep, err := engine(r).Journal(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) ledgerReport(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := reports.LedgerQuery{
		DateRange: dr,
		Code:      r.URL.Query().Get("account"),
		CodeFrom:  r.URL.Query().Get("account_from"),
		CodeTo:    r.URL.Query().Get("account_to"),
	}
	if r.URL.Query().Has("fiscal_year") {
		fy, err := queryInt(r, "fiscal_year")
		if err != nil {
			writeError(w, err)
			return
		}
		q.FiscalYear = &fy
	}
	rep, err := engine(r).GeneralLedger(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := reports.TrialBalanceQuery{DateRange: dr}
	if q.Level, err = queryInt(r, "level"); err != nil {
		writeError(w, err)
		return
	}
	rep, err := engine(r).TrialBalance(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, firstParam(r, "fecha", "as_of"))
	if err != nil {
		writeError(w, err)
		return
	}
	if asOf.IsZero() {
		asOf = service(r).Now()
	}
	q := reports.BalanceSheetQuery{AsOf: asOf}
	if q.Level, err = queryInt(r, "level"); err != nil {
		writeError(w, err)
		return
	}
	rep, err := engine(r).BalanceSheet(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) incomeStatement(w http.ResponseWriter, r *http.Request) {
	dr, err := dateRange(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := reports.IncomeStatementQuery{DateRange: dr, CompareWithPriorYear: queryBool(r, "compare")}
	if q.Level, err = queryInt(r, "level"); err != nil {
		writeError(w, err)
		return
	}
	rep, err := engine(r).IncomeStatement(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
