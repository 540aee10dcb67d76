package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"okapi/banksim-api/internal/anomaly"
	"okapi/banksim-api/internal/domain"
	"okapi/banksim-api/internal/sim"
	"okapi/banksim-api/internal/store"
	"okapi/banksim-api/internal/webhook"
)

// Handler holds the dependencies shared across all HTTP handlers. Live
// simulators and cached analyses are kept here, keyed by run ID; the store
// keeps the durable records.
type Handler struct {
	store    *store.Store
	notifier *webhook.Notifier

	mu       sync.RWMutex
	sims     map[string]*sim.Simulator
	analyses map[string]*anomaly.Result
}

// NewHandler creates a Handler wired to the given dependencies.
func NewHandler(s *store.Store, n *webhook.Notifier) *Handler {
	return &Handler{
		store:    s,
		notifier: n,
		sims:     make(map[string]*sim.Simulator),
		analyses: make(map[string]*anomaly.Result),
	}
}

// ─── POST /api/v1/simulations ─────────────────────────────────────────────────

// CreateSimulation validates the request, registers a run, and starts the
// simulation in the background. The response is 202 with the run record;
// clients poll GET /simulations/{id} for completion.
func (h *Handler) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req domain.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if err := validateSimulationRequest(&req); err != nil {
		badRequest(w, "VALIDATION_ERROR", err.Error())
		return
	}

	run := &domain.SimulationRun{
		ID:        uuid.NewString(),
		Status:    domain.RunRunning,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.SaveRun(run); err != nil {
		internalError(w)
		return
	}

	simulator := sim.New(req.Seed)
	h.mu.Lock()
	h.sims[run.ID] = simulator
	h.mu.Unlock()

	go h.runSimulation(*run, simulator)

	accepted(w, run)
}

// runSimulation drives one run to completion and records the outcome.
func (h *Handler) runSimulation(run domain.SimulationRun, simulator *sim.Simulator) {
	req := run.Request
	simulator.SetupReality(sim.Config{
		NumUsers:    req.NumUsers,
		NumBanks:    req.NumBanks,
		MinAmount:   req.MinAmount,
		MaxAmount:   req.MaxAmount,
		Fraudulence: req.Fraudulence,
	})

	slog.Info("simulation started", "run_id", run.ID, "users", req.NumUsers, "banks", req.NumBanks)

	if err := simulator.Simulate(req.Period, req.Iterations, req.BatchSize, req.Seed); err != nil {
		h.finishRun(run, domain.RunFailed, 0, err)
		return
	}

	tables, err := simulator.ExtractData()
	if err != nil {
		h.finishRun(run, domain.RunFailed, 0, err)
		return
	}
	h.store.SaveTables(run.ID, tables)
	h.finishRun(run, domain.RunComplete, len(tables.Transactions), nil)
}

func (h *Handler) finishRun(run domain.SimulationRun, status string, transactions int, err error) {
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.Transactions = transactions
	if err != nil {
		run.Error = err.Error()
		slog.Error("simulation failed", "run_id", run.ID, "error", err)
	} else {
		slog.Info("simulation finished", "run_id", run.ID, "transactions", transactions)
	}
	h.store.UpdateRun(&run)
}

// ─── GET /api/v1/simulations ──────────────────────────────────────────────────

// ListSimulations returns every run in creation order.
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	ok(w, h.store.ListRuns())
}

// GetSimulation returns one run; the ID "latest" resolves to the most
// recently created run.
func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	run, found := h.resolveRun(chi.URLParam(r, "id"))
	if !found {
		notFound(w, "simulation run not found")
		return
	}
	ok(w, run)
}

func (h *Handler) resolveRun(id string) (domain.SimulationRun, bool) {
	if id == "latest" {
		return h.store.LatestRun()
	}
	return h.store.GetRun(id)
}

// ─── GET /api/v1/simulations/{id}/tables/{name} ──────────────────────────────

// GetSimulationTable returns one of a completed run's exported tables.
func (h *Handler) GetSimulationTable(w http.ResponseWriter, r *http.Request) {
	run, found := h.resolveRun(chi.URLParam(r, "id"))
	if !found {
		notFound(w, "simulation run not found")
		return
	}
	tables, found := h.store.GetTables(run.ID)
	if !found {
		conflict(w, fmt.Sprintf("simulation '%s' has no exported tables yet (status %s)", run.ID, run.Status), nil)
		return
	}

	switch chi.URLParam(r, "name") {
	case "transactions":
		ok(w, tables.Transactions)
	case "bank_devices":
		ok(w, tables.BankDevices)
	case "profiles":
		ok(w, tables.Profiles)
	case "accounts":
		ok(w, tables.Accounts)
	default:
		badRequest(w, "INVALID_TABLE",
			"table must be one of: transactions, bank_devices, profiles, accounts")
	}
}

// ─── GET /api/v1/simulations/{id}/analysis ───────────────────────────────────

// GetSimulationAnalysis runs the feature and fraud pipeline over a completed
// run's transactions. The result is computed once and cached per run.
func (h *Handler) GetSimulationAnalysis(w http.ResponseWriter, r *http.Request) {
	run, found := h.resolveRun(chi.URLParam(r, "id"))
	if !found {
		notFound(w, "simulation run not found")
		return
	}

	h.mu.RLock()
	cached := h.analyses[run.ID]
	h.mu.RUnlock()
	if cached != nil {
		ok(w, cached)
		return
	}

	tables, found := h.store.GetTables(run.ID)
	if !found {
		conflict(w, fmt.Sprintf("simulation '%s' has no exported tables yet (status %s)", run.ID, run.Status), nil)
		return
	}

	result, err := anomaly.DetectFraud(tables.Transactions, tables.Accounts)
	if err != nil {
		if errors.Is(err, anomaly.ErrBatchTooSmall) {
			unprocessable(w, "BATCH_TOO_SMALL", err.Error(), nil)
			return
		}
		slog.Error("analysis failed", "run_id", run.ID, "error", err)
		internalError(w)
		return
	}

	h.mu.Lock()
	h.analyses[run.ID] = result
	h.mu.Unlock()

	ok(w, result)
}

// ─── POST /api/v1/transactions ────────────────────────────────────────────────

// transactionResponse is the entry point's success payload: the holder's
// leg, the counterparty's leg, and the fraud verdict the debit cleared.
type transactionResponse struct {
	Transaction  domain.Transaction `json:"transaction"`
	Counterparty domain.Transaction `json:"counterparty"`
	Verdict      anomaly.Verdict    `json:"verdict"`
}

// SubmitTransaction applies an external transfer to live simulation
// accounts. The debit leg is checked before anything commits: insufficient
// funds is a 409 carrying the attempted amount and available balance, and a
// debit whose fraud check trips the flag is refused with 422.
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if err := validateTransactionRequest(&req); err != nil {
		badRequest(w, "VALIDATION_ERROR", err.Error())
		return
	}

	simulator, found := h.latestSimulator()
	if !found {
		conflict(w, "no simulation is available to transact against", nil)
		return
	}

	holderAcct, holderBank, found := simulator.FindAccount(req.Holder, req.HolderBank)
	if !found {
		notFound(w, fmt.Sprintf("account '%s' at '%s' not found", req.Holder, req.HolderBank))
		return
	}
	relatedAcct, relatedBank, found := simulator.FindAccount(req.Related, req.RelatedBank)
	if !found {
		notFound(w, fmt.Sprintf("account '%s' at '%s' not found", req.Related, req.RelatedBank))
		return
	}

	// Orient the legs: the holder receives the requested type, the
	// counterparty the opposite.
	debitAcct, debitBank := holderAcct, holderBank
	creditAcct, creditBank := relatedAcct, relatedBank
	if req.Type == domain.TypeCredit {
		debitAcct, debitBank = relatedAcct, relatedBank
		creditAcct, creditBank = holderAcct, holderBank
	}
	debitCategory, creditCategory := legCategories(req.Category)

	if debitAcct.Balance < req.Amount {
		conflict(w, fmt.Sprintf("insufficient funds: %s at %s", debitAcct.AccountNo, debitAcct.BankName),
			map[string]float64{
				"attempted_amount":  req.Amount,
				"available_balance": debitAcct.Balance,
			})
		return
	}

	reference := uuid.NewString()
	location := domain.Location{Latitude: req.Latitude, Longitude: req.Longitude}

	// Score the debit before committing anything.
	candidate := domain.Transaction{
		Amount:      req.Amount,
		Balance:     debitAcct.Balance - req.Amount,
		Time:        simulator.Clock().Now(),
		Holder:      debitAcct.AccountNo,
		HolderBank:  debitAcct.BankName,
		Related:     creditAcct.AccountNo,
		RelatedBank: creditAcct.BankName,
		Location:    location,
		Status:      domain.StatusSuccess,
		Type:        domain.TypeDebit,
		Category:    debitCategory,
		Channel:     req.Channel,
		Device:      req.Device,
		Reference:   reference,
	}

	var verdict anomaly.Verdict
	tables, err := simulator.ExtractData()
	if err == nil {
		_, verdict, err = anomaly.ScoreOne(candidate, tables.Transactions, tables.Accounts)
	}
	switch {
	case err == nil:
		if verdict.Fraud {
			unprocessable(w, "FRAUD_DETECTED",
				fmt.Sprintf("unusual transaction detected, fraud score %.3f", verdict.FraudScore),
				verdict)
			h.notifier.NotifyAsync(candidate, verdict)
			return
		}
	case errors.Is(err, anomaly.ErrBatchTooSmall):
		// Too little history to score against; let the transfer through.
		slog.Warn("fraud check skipped", "reference", reference, "reason", err.Error())
	default:
		slog.Error("fraud check failed", "reference", reference, "error", err)
		internalError(w)
		return
	}

	debitTx, err := debitBank.Post(domain.TypeDebit, sim.LegRequest{
		AccountNo:   debitAcct.AccountNo,
		Related:     creditAcct.AccountNo,
		RelatedBank: creditAcct.BankName,
		Amount:      req.Amount,
		DeviceID:    req.Device,
		Location:    location,
		Category:    debitCategory,
		Channel:     req.Channel,
		Reference:   reference,
	})
	if err != nil {
		if errors.Is(err, sim.ErrInsufficientFunds) {
			// The balance moved between the check and the commit.
			conflict(w, err.Error(), map[string]float64{"attempted_amount": req.Amount})
			return
		}
		internalError(w)
		return
	}

	creditTx, err := creditBank.Post(domain.TypeCredit, sim.LegRequest{
		AccountNo:   creditAcct.AccountNo,
		Related:     debitAcct.AccountNo,
		RelatedBank: debitAcct.BankName,
		Amount:      req.Amount,
		DeviceID:    req.Device,
		Location:    location,
		Category:    creditCategory,
		Channel:     req.Channel,
		Reference:   reference,
	})
	if err != nil {
		internalError(w)
		return
	}

	h.notifier.NotifyAsync(debitTx, verdict)

	resp := transactionResponse{Transaction: debitTx, Counterparty: creditTx, Verdict: verdict}
	if req.Type == domain.TypeCredit {
		resp.Transaction, resp.Counterparty = creditTx, debitTx
	}
	created(w, resp)
}

// legCategories maps a requested category onto the two legs: cash-style
// categories split into a withdrawal and a deposit, anything else applies
// to both sides.
func legCategories(category string) (string, string) {
	if category == domain.CategoryDeposit || category == domain.CategoryWithdrawal {
		return domain.CategoryWithdrawal, domain.CategoryDeposit
	}
	return category, category
}

// latestSimulator returns the live simulator for the most recent run.
func (h *Handler) latestSimulator() (*sim.Simulator, bool) {
	run, found := h.store.LatestRun()
	if !found {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	simulator, found := h.sims[run.ID]
	return simulator, found
}

// ─── GET /api/v1/transactions/{reference} ────────────────────────────────────

// GetTransaction returns every ledger entry sharing a reference, across all
// banks of the latest simulation.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	simulator, found := h.latestSimulator()
	if !found {
		conflict(w, "no simulation is available", nil)
		return
	}

	tables, err := simulator.ExtractData()
	if err != nil {
		internalError(w)
		return
	}

	var legs []domain.Transaction
	for _, tx := range tables.Transactions {
		if tx.Reference == reference {
			legs = append(legs, tx)
		}
	}
	if len(legs) == 0 {
		notFound(w, fmt.Sprintf("transaction '%s' not found", reference))
		return
	}
	ok(w, legs)
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

type webhookRequest struct {
	URL       string  `json:"url"`
	Threshold float64 `json:"threshold"`
}

// RegisterWebhook adds a fraud-alert endpoint.
func (h *Handler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		badRequest(w, "VALIDATION_ERROR", "url must be an http(s) endpoint")
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		badRequest(w, "VALIDATION_ERROR", "threshold must be between 0 and 1")
		return
	}

	wh := &domain.WebhookConfig{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Threshold: req.Threshold,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	h.store.SaveWebhook(wh)
	created(w, wh)
}

// DeleteWebhook removes a webhook registration.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.store.DeleteWebhook(chi.URLParam(r, "id")) {
		notFound(w, "webhook not found")
		return
	}
	noContent(w)
}

// ─── Validation ───────────────────────────────────────────────────────────────

func validateSimulationRequest(req *domain.SimulationRequest) error {
	if req.NumUsers < 1 {
		return errors.New("num_users must be at least 1")
	}
	if req.NumBanks < 1 {
		return errors.New("num_banks must be at least 1")
	}
	if req.Period == 0 {
		req.Period = 86400
	}
	if req.Period < 1 {
		return errors.New("period must be a positive number of seconds")
	}
	if req.Iterations == 0 {
		req.Iterations = 1
	}
	if req.Iterations < 1 {
		return errors.New("iterations must be at least 1")
	}
	if req.BatchSize == 0 {
		req.BatchSize = 20
	}
	if req.BatchSize < 1 {
		return errors.New("batch_size must be at least 1")
	}
	if req.Seed == 0 {
		req.Seed = 42
	}
	if req.Fraudulence < 0 || req.Fraudulence >= 1 {
		return errors.New("fraudulence must be in [0, 1)")
	}
	return nil
}

func validateTransactionRequest(req *domain.TransactionRequest) error {
	if req.Holder == "" || req.HolderBank == "" {
		return errors.New("holder and holder_bank are required")
	}
	if req.Related == "" || req.RelatedBank == "" {
		return errors.New("related and related_bank are required")
	}
	if req.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if req.Type != domain.TypeDebit && req.Type != domain.TypeCredit {
		return errors.New("type must be DEBIT or CREDIT")
	}
	if req.Category == "" {
		req.Category = domain.CategoryTransfer
	}
	if req.Channel == "" {
		req.Channel = domain.ChannelApp
	}
	return nil
}
