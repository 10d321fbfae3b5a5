package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/store"
)

func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ledger.PredefinedAccounts)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accounting.AccountInput
	if !decode(w, r, &req) {
		return
	}
	acct, err := service(r).CreateAccount(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AccountFilter{
		Type:         ledger.AccountType(q.Get("type")),
		Prefix:       q.Get("prefix"),
		PartyType:    ledger.PartyType(q.Get("party_type")),
		PostableOnly: queryBool(r, "postable"),
		ActiveOnly:   queryBool(r, "active"),
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, err)
		return
	}

	accounts, err := service(r).ListAccounts(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []ledger.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func accountCode(r *http.Request) string {
	code, _ := url.PathUnescape(chi.URLParam(r, "code"))
	return code
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := service(r).GetAccount(r.Context(), accountCode(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// getAccountBalance returns the running balance, or the balance recomputed
// from the journal when as_of is given.
func (s *Server) getAccountBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		writeError(w, err)
		return
	}
	code := accountCode(r)
	if asOf.IsZero() {
		acct, err := service(r).Balance(r.Context(), code)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accounting.AccountBalance{
			Code:       acct.Code,
			Name:       acct.Name,
			Nature:     acct.Nature,
			AsOf:       service(r).Now(),
			DebitSum:   acct.DebitSum,
			CreditSum:  acct.CreditSum,
			NetBalance: acct.NetBalance,
		})
		return
	}

	var fiscalYear *int
	if r.URL.Query().Get("fiscal_year") != "" {
		fy, err := queryInt(r, "fiscal_year")
		if err != nil {
			writeError(w, err)
			return
		}
		fiscalYear = &fy
	}
	bal, err := service(r).BalanceAsOf(r.Context(), code, asOf, fiscalYear)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *Server) renameAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	acct, err := service(r).UpdateAccount(r.Context(), accountCode(r), req.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	if err := service(r).DeactivateAccount(r.Context(), accountCode(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type subsidiaryRequest struct {
	PartyID   string           `json:"party_id"`
	PartyType ledger.PartyType `json:"party_type"`
}

func (s *Server) resolveSubsidiary(w http.ResponseWriter, r *http.Request) {
	var req subsidiaryRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := service(r).ResolveOrCreateSubsidiaryAccount(r.Context(), req.PartyID, req.PartyType)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) upsertParty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		TaxID string `json:"tax_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	p := store.Party{
		Type:  ledger.PartyType(chi.URLParam(r, "type")),
		ID:    chi.URLParam(r, "id"),
		Name:  req.Name,
		TaxID: req.TaxID,
	}
	if err := service(r).Store().UpsertParty(r.Context(), p); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
