package server

import (
	"context"
	"net/http"

	"github.com/simonvc/contaledger/internal/autopost"
	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/log"
)

// DocumentResponse reports the outcome of an automatic posting. Posted is
// false when the tenant has automatic posting disabled.
type DocumentResponse struct {
	Posted bool                 `json:"posted"`
	Entry  *ledger.JournalEntry `json:"entry,omitempty"`
}

func postDocument[T any](w http.ResponseWriter, r *http.Request, post func(*autopost.Generators, context.Context, T) (*ledger.JournalEntry, error)) {
	var doc T
	if !decode(w, r, &doc) {
		return
	}
	gen := autopost.New(service(r), log.FromContext(r.Context()).NewSystem("autopost"))
	entry, err := post(gen, r.Context(), doc)
	if err != nil {
		fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if entry == nil || entry.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, DocumentResponse{Posted: entry != nil, Entry: entry})
}

func (s *Server) postSalesInvoice(w http.ResponseWriter, r *http.Request) {
	postDocument(w, r, (*autopost.Generators).PostSalesInvoice)
}

func (s *Server) postPurchaseInvoice(w http.ResponseWriter, r *http.Request) {
	postDocument(w, r, (*autopost.Generators).PostPurchaseInvoice)
}

func (s *Server) postReceipt(w http.ResponseWriter, r *http.Request) {
	postDocument(w, r, (*autopost.Generators).PostReceipt)
}

func (s *Server) postPayment(w http.ResponseWriter, r *http.Request) {
	postDocument(w, r, (*autopost.Generators).PostPayment)
}
