// Package client is the HTTP client the CLI uses to talk to a running
// contaledger server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/autopost"
	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/reports"
	"github.com/simonvc/contaledger/internal/server"
)

type Client struct {
	baseURL    string
	tenant     string
	httpClient *http.Client
}

// New returns a client for one tenant of the server at baseURL.
func New(baseURL, tenant string) *Client {
	return &Client{
		baseURL: baseURL,
		tenant:  tenant,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) tenantPath(path string) string {
	return "/api/v1/tenants/" + url.PathEscape(c.tenant) + path
}

func (c *Client) CreateAccount(ctx context.Context, in accounting.AccountInput) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/accounts"), in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type AccountQuery struct {
	Type         ledger.AccountType
	Prefix       string
	PartyType    ledger.PartyType
	PostableOnly bool
	ActiveOnly   bool
}

func (c *Client) ListAccounts(ctx context.Context, q AccountQuery) ([]ledger.Account, error) {
	params := url.Values{}
	setParam(params, "type", string(q.Type))
	setParam(params, "prefix", q.Prefix)
	setParam(params, "party_type", string(q.PartyType))
	if q.PostableOnly {
		params.Set("postable", "true")
	}
	if q.ActiveOnly {
		params.Set("active", "true")
	}
	var result []ledger.Account
	if err := c.get(ctx, c.tenantPath("/accounts"), params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetAccount(ctx context.Context, code string) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.get(ctx, c.tenantPath("/accounts/"+url.PathEscape(code)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AccountBalance returns the running balance, or the balance as of a date
// when asOf is non-zero.
func (c *Client) AccountBalance(ctx context.Context, code string, asOf time.Time) (*accounting.AccountBalance, error) {
	params := url.Values{}
	if !asOf.IsZero() {
		params.Set("as_of", asOf.Format(ledger.DateLayout))
	}
	var result accounting.AccountBalance
	if err := c.get(ctx, c.tenantPath("/accounts/"+url.PathEscape(code)+"/balance"), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RenameAccount(ctx context.Context, code, newName string) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.send(ctx, http.MethodPatch, c.tenantPath("/accounts/"+url.PathEscape(code)), map[string]string{"name": newName}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeactivateAccount(ctx context.Context, code string) error {
	return c.send(ctx, http.MethodDelete, c.tenantPath("/accounts/"+url.PathEscape(code)), nil, nil)
}

func (c *Client) ResolveSubsidiary(ctx context.Context, partyID string, partyType ledger.PartyType) (*ledger.Account, error) {
	body := map[string]any{"party_id": partyID, "party_type": partyType}
	var result ledger.Account
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/subsidiary-accounts"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpsertParty(ctx context.Context, partyType ledger.PartyType, id, name, taxID string) error {
	body := map[string]string{"name": name, "tax_id": taxID}
	path := c.tenantPath("/parties/" + url.PathEscape(string(partyType)) + "/" + url.PathEscape(id))
	return c.send(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) PostEntry(ctx context.Context, req server.EntryRequest) (*ledger.JournalEntry, error) {
	var result ledger.JournalEntry
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/entries"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type EntryQuery struct {
	FiscalYear int
	From, To   time.Time
	Origin     ledger.Origin
	Status     ledger.Status
	Limit      int
}

func (c *Client) ListEntries(ctx context.Context, q EntryQuery) ([]ledger.JournalEntry, error) {
	params := url.Values{}
	setInt(params, "fiscal_year", q.FiscalYear)
	setDate(params, "from", q.From)
	setDate(params, "to", q.To)
	setParam(params, "origin", string(q.Origin))
	setParam(params, "status", string(q.Status))
	setInt(params, "limit", q.Limit)
	var result []ledger.JournalEntry
	if err := c.get(ctx, c.tenantPath("/entries"), params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetEntry(ctx context.Context, id string) (*ledger.JournalEntry, error) {
	var result ledger.JournalEntry
	if err := c.get(ctx, c.tenantPath("/entries/"+url.PathEscape(id)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) VoidEntry(ctx context.Context, id string, req accounting.VoidRequest) (*accounting.VoidResult, error) {
	var result accounting.VoidResult
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/entries/"+url.PathEscape(id)+"/void"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) PostSalesInvoice(ctx context.Context, inv autopost.SalesInvoice) (*server.DocumentResponse, error) {
	return c.postDocument(ctx, "sales-invoices", inv)
}

func (c *Client) PostPurchaseInvoice(ctx context.Context, inv autopost.PurchaseInvoice) (*server.DocumentResponse, error) {
	return c.postDocument(ctx, "purchase-invoices", inv)
}

func (c *Client) PostReceipt(ctx context.Context, r autopost.Receipt) (*server.DocumentResponse, error) {
	return c.postDocument(ctx, "receipts", r)
}

func (c *Client) PostPayment(ctx context.Context, p autopost.Payment) (*server.DocumentResponse, error) {
	return c.postDocument(ctx, "payments", p)
}

func (c *Client) postDocument(ctx context.Context, kind string, doc any) (*server.DocumentResponse, error) {
	var result server.DocumentResponse
	if err := c.send(ctx, http.MethodPost, c.tenantPath("/documents/"+kind), doc, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func rangeParams(r reports.DateRange) url.Values {
	params := url.Values{}
	setDate(params, "desde", r.From)
	setDate(params, "hasta", r.To)
	return params
}

func (c *Client) Journal(ctx context.Context, q reports.JournalQuery) (*reports.JournalReport, error) {
	params := rangeParams(q.DateRange)
	setParam(params, "account", q.AccountPrefix)
	setParam(params, "origin", string(q.Origin))
	if q.IncludeVoided {
		params.Set("include_voided", "true")
	}
	setInt(params, "page", q.Page)
	setInt(params, "page_size", q.PageSize)
	var result reports.JournalReport
	if err := c.get(ctx, c.tenantPath("/reports/journal"), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GeneralLedger(ctx context.Context, q reports.LedgerQuery) (*reports.LedgerReport, error) {
	params := rangeParams(q.DateRange)
	setParam(params, "account", q.Code)
	setParam(params, "account_from", q.CodeFrom)
	setParam(params, "account_to", q.CodeTo)
	if q.FiscalYear != nil {
		params.Set("fiscal_year", strconv.Itoa(*q.FiscalYear))
	}
	var result reports.LedgerReport
	if err := c.get(ctx, c.tenantPath("/reports/ledger"), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) TrialBalance(ctx context.Context, q reports.TrialBalanceQuery) (*reports.TrialBalanceReport, error) {
	params := rangeParams(q.DateRange)
	setInt(params, "level", q.Level)
	var result reports.TrialBalanceReport
	if err := c.get(ctx, c.tenantPath("/reports/trial-balance"), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) BalanceSheet(ctx context.Context, q reports.BalanceSheetQuery) (*reports.BalanceSheetReport, error) {
	params := url.Values{}
	setDate(params, "fecha", q.AsOf)
	setInt(params, "level", q.Level)
	var result reports.BalanceSheetReport
	if err := c.get(ctx, c.tenantPath("/reports/balance-sheet"), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) IncomeStatement(ctx context.Context, q reports.IncomeStatementQuery) (*reports.IncomeStatementReport, error) {
	params := rangeParams(q.DateRange)
	setInt(params, "level", q.Level)
	if q.CompareWithPriorYear {
		params.Set("compare", "true")
	}
	var result reports.IncomeStatementReport
	if err := c.get(ctx, c.tenantPath("/reports/income-statement"), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) FiscalConfig(ctx context.Context) (*ledger.FiscalConfig, error) {
	var result ledger.FiscalConfig
	if err := c.get(ctx, c.tenantPath("/config"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdateFiscalConfig(ctx context.Context, cfg ledger.FiscalConfig) error {
	return c.send(ctx, http.MethodPut, c.tenantPath("/config"), cfg, nil)
}

func (c *Client) PeriodLocks(ctx context.Context) ([]ledger.PeriodLock, error) {
	var result []ledger.PeriodLock
	if err := c.get(ctx, c.tenantPath("/periods/locks"), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) LockPeriod(ctx context.Context, year, month int) error {
	return c.send(ctx, http.MethodPost, c.tenantPath("/periods/locks"), ledger.PeriodLock{Year: year, Month: month}, nil)
}

func (c *Client) UnlockPeriod(ctx context.Context, year, month int) error {
	return c.send(ctx, http.MethodDelete, c.tenantPath(fmt.Sprintf("/periods/locks/%d/%d", year, month)), nil, nil)
}

// CloseYear posts the regularization entry and locks the year.
func (c *Client) CloseYear(ctx context.Context, year int) (*server.DocumentResponse, error) {
	var result server.DocumentResponse
	if err := c.send(ctx, http.MethodPost, c.tenantPath(fmt.Sprintf("/fiscal-years/%d/close", year)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) OpenYear(ctx context.Context, year int) (*server.DocumentResponse, error) {
	var result server.DocumentResponse
	if err := c.send(ctx, http.MethodPost, c.tenantPath(fmt.Sprintf("/fiscal-years/%d/open", year)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetChart(ctx context.Context) ([]ledger.ChartEntry, error) {
	var result []ledger.ChartEntry
	if err := c.get(ctx, "/api/v1/chart", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

func setParam(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setInt(v url.Values, key string, n int) {
	if n != 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

func setDate(v url.Values, key string, t time.Time) {
	if !t.IsZero() {
		v.Set(key, t.Format(ledger.DateLayout))
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.send(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) send(ctx context.Context, method, path string, body any, result any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doRequest(req, result)
}

type apiError struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

func (c *Client) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error, Field: apiErr.Field}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	if result != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
