package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/simonvc/contaledger/internal/ledger"
)

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := service(r).FiscalConfig(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	var cfg ledger.FiscalConfig
	if !decode(w, r, &cfg) {
		return
	}
	if err := service(r).UpdateFiscalConfig(r.Context(), cfg); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) listPeriodLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := service(r).PeriodLocks(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if locks == nil {
		locks = []ledger.PeriodLock{}
	}
	writeJSON(w, http.StatusOK, locks)
}

func (s *Server) lockPeriod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := service(r).LockPeriod(r.Context(), req.Year, req.Month); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ledger.PeriodLock{Year: req.Year, Month: req.Month})
}

func (s *Server) unlockPeriod(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(chi.URLParam(r, "year"), "year")
	if err != nil {
		writeError(w, err)
		return
	}
	month, err := pathInt(chi.URLParam(r, "month"), "month")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := service(r).UnlockPeriod(r.Context(), year, month); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type yearEndRequest struct {
	Date *time.Time `json:"date,omitempty"`
}

func (s *Server) closeYear(w http.ResponseWriter, r *http.Request) {
	s.yearEnd(w, r, true)
}

func (s *Server) openYear(w http.ResponseWriter, r *http.Request) {
	s.yearEnd(w, r, false)
}

func (s *Server) yearEnd(w http.ResponseWriter, r *http.Request, closing bool) {
	year, err := pathInt(chi.URLParam(r, "year"), "year")
	if err != nil {
		writeError(w, err)
		return
	}
	var req yearEndRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	svc := service(r)
	var entry *ledger.JournalEntry
	if closing {
		entry, err = svc.CloseFiscalYear(r.Context(), year, req.Date)
	} else {
		entry, err = svc.OpenFiscalYear(r.Context(), year, req.Date)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Posted: entry != nil, Entry: entry})
}
