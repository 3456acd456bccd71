package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradebook.org/internal/audit"
	"tradebook.org/internal/auth"
	"tradebook.org/internal/ledger"
	"tradebook.org/internal/obs"
	"tradebook.org/internal/stream"
)

type openAccountRequest struct {
	OwnerID        string       `json:"owner_id"`
	InitialDeposit ledger.Money `json:"initial_deposit"`
}

type cashRequest struct {
	Amount ledger.Money `json:"amount"`
}

type orderRequest struct {
	Side     string `json:"side"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

type holdingsResponse struct {
	AccountID string           `json:"account_id"`
	Holdings  map[string]int64 `json:"holdings"`
	AsOf      time.Time        `json:"as_of"`
}

type listTransactionsResponse struct {
	Items []ledger.Transaction `json:"items"`
	Total int                  `json:"total"`
	AsOf  time.Time            `json:"as_of"`
}

type portfolioResponse struct {
	AccountID      string       `json:"account_id"`
	CashBalance    ledger.Money `json:"cash_balance"`
	HoldingsValue  ledger.Money `json:"holdings_value"`
	PortfolioValue ledger.Money `json:"portfolio_value"`
	ProfitOrLoss   ledger.Money `json:"profit_or_loss"`
	AsOf           time.Time    `json:"as_of"`
}

type quoteResponse struct {
	Symbol string       `json:"symbol"`
	Price  ledger.Money `json:"price"`
	AsOf   time.Time    `json:"as_of"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAccount(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, sub, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(sub, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getAccount(w, r, id)
	case "deposits":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.deposit(w, r, id)
	case "withdrawals":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.withdraw(w, r, id)
	case "orders":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.placeOrder(w, r, id)
	case "holdings":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.holdings(w, r, id)
	case "transactions":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listTransactions(w, r, id)
	case "portfolio":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.portfolio(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.OwnerID == "" {
		writeError(w, r, http.StatusBadRequest, "owner_id is required")
		return
	}
	if len(req.OwnerID) > 128 {
		writeError(w, r, http.StatusBadRequest, "owner_id must be <=128 characters")
		return
	}
	if auth.Enabled() {
		caller, ok := auth.OwnerFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		if caller != req.OwnerID {
			writeError(w, r, http.StatusForbidden, "token subject does not match owner_id")
			return
		}
	}

	st, err := a.svc.Open(r.Context(), req.OwnerID, req.InitialDeposit)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}

	obs.AccountOpened()
	// A positive opening balance lands as the account's first deposit.
	if st.TxCount > 0 {
		obs.ObserveTransaction(string(ledger.KindDeposit))
	}

	a.audit(r.Context(), "account.open", st.ID, map[string]any{
		"owner_id":        st.OwnerID,
		"initial_deposit": st.CashBalance.String(),
	})

	w.Header().Set("Location", "/v1/accounts/"+st.ID)
	writeJSON(w, http.StatusCreated, st)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	st, ok := a.requireOwner(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request, id string) {
	a.cashMovement(w, r, id, ledger.KindDeposit)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request, id string) {
	a.cashMovement(w, r, id, ledger.KindWithdraw)
}

func (a *API) cashMovement(w http.ResponseWriter, r *http.Request, id string, kind ledger.Kind) {
	st, ok := a.requireOwner(w, r, id)
	if !ok {
		return
	}
	var req cashRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	idem, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	start := time.Now().UTC()
	var (
		tx  ledger.Transaction
		err error
	)
	if kind == ledger.KindDeposit {
		tx, err = a.svc.Deposit(r.Context(), id, req.Amount, idem)
	} else {
		tx, err = a.svc.Withdraw(r.Context(), id, req.Amount, idem)
	}
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	a.finishTransaction(w, r, st, tx, idem, start)
}

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request, id string) {
	st, ok := a.requireOwner(w, r, id)
	if !ok {
		return
	}
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	idem, ok := idempotencyKey(w, r)
	if !ok {
		return
	}
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		writeError(w, r, http.StatusBadRequest, "symbol is required")
		return
	}

	start := time.Now().UTC()
	var (
		tx  ledger.Transaction
		err error
	)
	switch strings.ToLower(strings.TrimSpace(req.Side)) {
	case "buy":
		tx, err = a.svc.Buy(r.Context(), id, symbol, req.Quantity, idem)
	case "sell":
		tx, err = a.svc.Sell(r.Context(), id, symbol, req.Quantity, idem)
	default:
		writeError(w, r, http.StatusBadRequest, `side must be "buy" or "sell"`)
		return
	}
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	a.finishTransaction(w, r, st, tx, idem, start)
}

func (a *API) holdings(w http.ResponseWriter, r *http.Request, id string) {
	st, ok := a.requireOwner(w, r, id)
	if !ok {
		return
	}
	hs, err := a.svc.Holdings(r.Context(), id)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holdingsResponse{
		AccountID: st.ID,
		Holdings:  hs,
		AsOf:      time.Now().UTC(),
	})
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireOwner(w, r, id); !ok {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = v
	}

	items, total, err := a.svc.Transactions(r.Context(), id, limit, offset)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listTransactionsResponse{
		Items: items,
		Total: total,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) portfolio(w http.ResponseWriter, r *http.Request, id string) {
	st, ok := a.requireOwner(w, r, id)
	if !ok {
		return
	}
	value, err := a.svc.PortfolioValue(r.Context(), id)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	pnl, err := a.svc.ProfitOrLoss(r.Context(), id)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolioResponse{
		AccountID:      st.ID,
		CashBalance:    st.CashBalance,
		HoldingsValue:  value.Sub(st.CashBalance),
		PortfolioValue: value,
		ProfitOrLoss:   pnl,
		AsOf:           time.Now().UTC(),
	})
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.quotes == nil {
		writeError(w, r, http.StatusServiceUnavailable, "quotes disabled")
		return
	}
	symbol := strings.TrimPrefix(r.URL.Path, "/v1/quotes/")
	if symbol == "" || strings.Contains(symbol, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	price, err := a.quotes.Price(symbol)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownSymbol) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Symbol: symbol,
		Price:  price,
		AsOf:   time.Now().UTC(),
	})
}

// requireOwner loads the account and, when token auth is enabled, checks
// that the authenticated caller owns it.
func (a *API) requireOwner(w http.ResponseWriter, r *http.Request, id string) (ledger.AccountState, bool) {
	st, err := a.svc.Get(r.Context(), id)
	if err != nil {
		handleAccountError(w, r, err)
		return ledger.AccountState{}, false
	}
	if !auth.Enabled() {
		return st, true
	}
	caller, ok := auth.OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return ledger.AccountState{}, false
	}
	if caller != st.OwnerID {
		a.audit(r.Context(), "account.access_denied", st.ID, map[string]any{
			"caller": caller,
		})
		writeError(w, r, http.StatusForbidden, "not the account owner")
		return ledger.AccountState{}, false
	}
	return st, true
}

// finishTransaction handles the shared tail of every mutating account
// operation: idempotency echo, metrics, stream fan-out and the audit
// trail. A replayed idempotent call skips metrics and fan-out so the
// transaction is only counted once.
func (a *API) finishTransaction(w http.ResponseWriter, r *http.Request, st ledger.AccountState, tx ledger.Transaction, idem string, start time.Time) {
	replayed := idem != "" && !tx.CreatedAt.After(start)

	if idem != "" {
		w.Header().Set("Idempotency-Key", idem)
	}
	if !replayed {
		obs.ObserveTransaction(string(tx.Kind))
		a.publishTransaction(st, tx)
	}

	meta := map[string]any{
		"kind":     string(tx.Kind),
		"amount":   tx.Amount.String(),
		"sequence": tx.Sequence,
	}
	if tx.Symbol != "" {
		meta["symbol"] = tx.Symbol
		meta["quantity"] = tx.Quantity
	}
	if idem != "" {
		meta["idempotency_key"] = idem
	}
	event := "account." + string(tx.Kind)
	if replayed {
		event += ".idempotent_replay"
	}
	a.audit(r.Context(), event, st.ID, meta)

	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) publishTransaction(st ledger.AccountState, tx ledger.Transaction) {
	if a.stream == nil {
		return
	}
	evt := stream.TransactionEvent{
		AccountID: st.ID,
		OwnerID:   st.OwnerID,
		Kind:      string(tx.Kind),
		Symbol:    tx.Symbol,
		Quantity:  tx.Quantity,
		Amount:    tx.Amount.String(),
		Sequence:  tx.Sequence,
		Timestamp: tx.CreatedAt,
	}
	if tx.SharePrice != nil {
		evt.SharePrice = tx.SharePrice.String()
	}
	a.stream.Publish(evt)
}

func (a *API) audit(ctx context.Context, event, accountID string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	if accountID != "" {
		fields["account_id"] = accountID
	}
	_ = audit.LogEvent(ctx, event, fields)
}

func idempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > 128 {
		writeError(w, r, http.StatusBadRequest, "Idempotency-Key too long")
		return "", false
	}
	return key, true
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrEmptyOwner):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrUnknownSymbol):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
