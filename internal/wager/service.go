// Package wager provides the HTTP handlers orchestrating escrow operations:
// creating, accepting, resolving, and cancelling wagers, plus the relayed
// submission and oracle callback paths.
//
// All monetary values use shopspring/decimal — never float64 for money.
package wager

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/wagerx/escrow-engine/internal/charity"
	"github.com/wagerx/escrow-engine/internal/condition"
	"github.com/wagerx/escrow-engine/internal/escrow"
	"github.com/wagerx/escrow-engine/internal/idempotency"
	"github.com/wagerx/escrow-engine/internal/limits"
	"github.com/wagerx/escrow-engine/internal/metrics"
	"github.com/wagerx/escrow-engine/internal/model"
	"github.com/wagerx/escrow-engine/internal/oracle"
	"github.com/wagerx/escrow-engine/internal/relayer"
	"github.com/wagerx/escrow-engine/internal/store"
)

// IdempotencyKeyHeader names the header relay clients use to deduplicate
// retried submissions.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// Service handles wager operations. The ledger serializes mutations per
// wager; the service layers address validation, limits, persistence
// write-through, and instrumentation on top.
type Service struct {
	ledger     *escrow.Ledger
	store      store.Store
	limiter    *limits.StakeLimiter
	registry   *charity.Registry
	oracle     oracle.Client // optional winner cross-check on resolve
	idem       idempotency.Store
	idemWindow time.Duration
}

// NewService creates a new wager service. Pass nil for oracle to skip the
// resolve-time cross-check.
func NewService(
	ledger *escrow.Ledger,
	st store.Store,
	limiter *limits.StakeLimiter,
	registry *charity.Registry,
	oc oracle.Client,
	idem idempotency.Store,
	idemWindow time.Duration,
) *Service {
	return &Service{
		ledger:     ledger,
		store:      st,
		limiter:    limiter,
		registry:   registry,
		oracle:     oc,
		idem:       idem,
		idemWindow: idemWindow,
	}
}

// --- Request/Response types ---

// CreateWagerRequest is the JSON body for POST /api/v1/wagers.
type CreateWagerRequest struct {
	Creator           string          `json:"creator"`
	Participants      []string        `json:"participants"`
	Amount            decimal.Decimal `json:"amount"`
	Condition         string          `json:"condition"`
	CharityEnabled    bool            `json:"charity_enabled"`
	CharityPercentage int64           `json:"charity_percentage"`
	CharityAddress    string          `json:"charity_address"`
	Payment           decimal.Decimal `json:"payment"` // attached value; excess is retained
}

// AcceptWagerRequest is the JSON body for POST /api/v1/wagers/{wagerID}/accept.
type AcceptWagerRequest struct {
	Caller  string          `json:"caller"`
	Payment decimal.Decimal `json:"payment"`
}

// ResolveWagerRequest is the JSON body for POST /api/v1/wagers/{wagerID}/resolve.
type ResolveWagerRequest struct {
	Caller   string `json:"caller"`
	Winner   string `json:"winner"`
	Evidence string `json:"evidence"`
}

// CancelWagerRequest is the JSON body for POST /api/v1/wagers/{wagerID}/cancel.
type CancelWagerRequest struct {
	Caller string `json:"caller"`
}

// RelayWagerRequest is the JSON body for POST /api/v1/relay/wagers: wager
// parameters signed off-band by the sender, submitted by a sponsor.
type RelayWagerRequest struct {
	Sender            string          `json:"sender"`
	Participants      []string        `json:"participants"`
	Amount            decimal.Decimal `json:"amount"`
	Condition         string          `json:"condition"`
	CharityEnabled    bool            `json:"charity_enabled"`
	CharityPercentage int64           `json:"charity_percentage"`
	CharityAddress    string          `json:"charity_address"`
	Nonce             uint64          `json:"nonce"`
	Signature         string          `json:"signature"`
}

// OracleCallbackRequest is the JSON body the verification service posts to
// POST /api/v1/callbacks/oracle once it has judged an outcome.
type OracleCallbackRequest struct {
	WagerID  uint64 `json:"wager_id"`
	Winner   string `json:"winner"`
	Evidence string `json:"evidence"`
}

// --- HTTP Handlers ---

// CreateWager handles POST /api/v1/wagers
func (s *Service) CreateWager(w http.ResponseWriter, r *http.Request) {
	var req CreateWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, status, errMsg := s.create(r, req)
	if errMsg != "" {
		writeError(w, errMsg, status)
		return
	}

	wg, err := s.ledger.GetWager(id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, wg)
}

// create runs the shared validation + creation path for both the direct and
// relayed submission handlers. Returns the new id, or a non-empty error
// message with its HTTP status.
func (s *Service) create(r *http.Request, req CreateWagerRequest) (uint64, int, string) {
	creator, ok := normalizeAddress(req.Creator)
	if !ok {
		return 0, http.StatusBadRequest, "creator is not a valid address"
	}
	participants := make([]string, 0, len(req.Participants))
	creatorListed := false
	for _, p := range req.Participants {
		addr, ok := normalizeAddress(p)
		if !ok {
			return 0, http.StatusBadRequest, "participant is not a valid address: " + p
		}
		if addr == creator {
			creatorListed = true
		}
		participants = append(participants, addr)
	}
	if len(participants) >= 2 && !creatorListed {
		return 0, http.StatusBadRequest, "creator must be a listed participant"
	}

	charityAddr := ""
	if req.CharityEnabled {
		addr, ok := normalizeAddress(req.CharityAddress)
		if !ok {
			return 0, http.StatusBadRequest, "charity address is not a valid address"
		}
		charityAddr = addr
	}

	if _, err := condition.Parse(req.Condition); err != nil {
		return 0, http.StatusBadRequest, err.Error()
	}

	exposures, err := s.openExposures(r.Context())
	if err != nil {
		return 0, http.StatusInternalServerError, "failed to check stake limits"
	}
	if err := s.limiter.Check(req.Amount, len(participants), creator, exposures); err != nil {
		return 0, http.StatusConflict, err.Error()
	}

	id, err := s.ledger.CreateWager(escrow.CreateParams{
		Creator:           creator,
		Participants:      participants,
		Amount:            req.Amount,
		Condition:         req.Condition,
		CharityEnabled:    req.CharityEnabled,
		CharityPercentage: req.CharityPercentage,
		CharityAddress:    charityAddr,
		Payment:           req.Payment,
	})
	if err != nil {
		return 0, statusForError(err), err.Error()
	}

	s.mirror(r, id)
	metrics.WagersCreatedTotal.Inc()
	s.observeCustody()

	slog.Info("wager created",
		"wager_id", id,
		"creator", creator,
		"amount", req.Amount.String(),
		"participants", len(participants),
		"charity", req.CharityEnabled,
	)
	return id, 0, ""
}

// AcceptWager handles POST /api/v1/wagers/{wagerID}/accept
func (s *Service) AcceptWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}

	var req AcceptWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	caller, okAddr := normalizeAddress(req.Caller)
	if !okAddr {
		writeError(w, "caller is not a valid address", http.StatusBadRequest)
		return
	}

	exposures, err := s.openExposures(r.Context())
	if err != nil {
		writeError(w, "failed to check stake limits", http.StatusInternalServerError)
		return
	}
	wg, err := s.ledger.GetWager(id)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	if err := s.limiter.Check(wg.Amount, len(wg.Participants), caller, exposures); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	if err := s.ledger.AcceptWager(id, caller, req.Payment); err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	s.mirror(r, id)
	metrics.WagersAcceptedTotal.Inc()
	s.observeCustody()

	slog.Info("wager accepted", "wager_id", id, "caller", caller, "payment", req.Payment.String())

	wg, _ = s.ledger.GetWager(id)
	writeJSON(w, http.StatusOK, wg)
}

// ResolveWager handles POST /api/v1/wagers/{wagerID}/resolve
// Only the escrow owner may resolve through this endpoint; the oracle uses
// the authenticated callback route.
func (s *Service) ResolveWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}

	var req ResolveWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	caller, okAddr := normalizeAddress(req.Caller)
	if !okAddr {
		writeError(w, "caller is not a valid address", http.StatusBadRequest)
		return
	}
	winner, okAddr := normalizeAddress(req.Winner)
	if !okAddr {
		writeError(w, "winner is not a valid address", http.StatusBadRequest)
		return
	}
	if !strings.EqualFold(caller, s.ledger.Owner()) {
		writeError(w, "only the escrow owner may resolve", http.StatusForbidden)
		return
	}

	if s.oracle != nil {
		if ok := s.crossCheckWinner(r, id, winner); !ok {
			writeError(w, "oracle verification rejected the named winner", http.StatusConflict)
			return
		}
	}

	if err := s.resolve(r, id, winner, req.Evidence); err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	wg, _ := s.ledger.GetWager(id)
	writeJSON(w, http.StatusOK, wg)
}

// crossCheckWinner asks the verification service to confirm the declared
// winner. Transport failures are logged and waved through so an oracle
// outage cannot freeze escrowed funds; an explicit disagreement rejects.
func (s *Service) crossCheckWinner(r *http.Request, id uint64, winner string) bool {
	wg, err := s.ledger.GetWager(id)
	if err != nil {
		return true // resolve path will report the missing wager
	}
	parsed, err := condition.Parse(wg.Condition)
	category := ""
	if err == nil {
		category = parsed.Category
	}

	v, err := s.oracle.VerifyOutcome(r.Context(), oracle.VerifyRequest{
		WagerID:      id,
		Condition:    wg.Condition,
		Category:     category,
		Participants: wg.Participants,
	})
	if err != nil {
		slog.Warn("oracle cross-check unavailable", "wager_id", id, "err", err)
		return true
	}
	if !v.Verified {
		return false
	}
	vw, ok := normalizeAddress(v.Winner)
	return ok && vw == winner
}

// resolve runs the shared resolution path for the owner endpoint and the
// oracle callback: ledger resolution, write-through, metrics, logging.
func (s *Service) resolve(r *http.Request, id uint64, winner, evidence string) error {
	if err := s.ledger.ResolveWager(id, winner, evidence); err != nil {
		return err
	}

	s.mirror(r, id)
	s.observeCustody()

	wg, err := s.ledger.GetWager(id)
	charityLabel := "none"
	if err == nil && wg.CharityDonated.IsPositive() {
		charityLabel = "donated"
		donated, _ := wg.CharityDonated.Float64()
		metrics.CharityDonatedTotal.Add(donated)
	}
	metrics.WagersResolvedTotal.WithLabelValues(charityLabel).Inc()

	slog.Info("wager resolved",
		"wager_id", id,
		"winner", winner,
		"charity_donated", wg.CharityDonated.String(),
	)
	return nil
}

// CancelWager handles POST /api/v1/wagers/{wagerID}/cancel
func (s *Service) CancelWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}

	var req CancelWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	caller, okAddr := normalizeAddress(req.Caller)
	if !okAddr {
		writeError(w, "caller is not a valid address", http.StatusBadRequest)
		return
	}

	if err := s.ledger.CancelWager(id, caller); err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	s.mirror(r, id)
	metrics.WagersCancelledTotal.Inc()
	s.observeCustody()

	slog.Info("wager cancelled", "wager_id", id, "caller", caller)

	wg, _ := s.ledger.GetWager(id)
	writeJSON(w, http.StatusOK, wg)
}

// GetWager handles GET /api/v1/wagers/{wagerID}
func (s *Service) GetWager(w http.ResponseWriter, r *http.Request) {
	id, ok := wagerID(w, r)
	if !ok {
		return
	}
	wg, err := s.ledger.GetWager(id)
	if err != nil {
		writeError(w, "wager not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wg)
}

// ListWagers handles GET /api/v1/wagers
// Reads from the mirror store, optionally filtered by ?status=<state>.
func (s *Service) ListWagers(w http.ResponseWriter, r *http.Request) {
	var (
		wagers []model.Wager
		err    error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, perr := model.ParseStatus(raw)
		if perr != nil {
			writeError(w, perr.Error(), http.StatusBadRequest)
			return
		}
		wagers, err = s.store.ListWagersByStatus(r.Context(), status)
	} else {
		wagers, err = s.store.ListWagers(r.Context())
	}
	if err != nil {
		writeError(w, "failed to list wagers", http.StatusInternalServerError)
		return
	}
	if wagers == nil {
		wagers = []model.Wager{}
	}
	writeJSON(w, http.StatusOK, wagers)
}

// ListCharities handles GET /api/v1/charities
func (s *Service) ListCharities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// RelayWager handles POST /api/v1/relay/wagers
// A sponsor submits wager parameters signed by the sender; the signature is
// verified, the wager created on the sender's behalf with the stake as the
// attached payment, and retried submissions replayed from the idempotency
// store.
func (s *Service) RelayWager(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(IdempotencyKeyHeader)
	if key != "" && s.idem != nil {
		if rec, err := s.idem.Get(r.Context(), key); err == nil {
			metrics.RelaySubmissionsTotal.WithLabelValues("replayed").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			w.Write(rec.Response)
			return
		}
	}

	var req RelayWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sub := relayer.Submission{
		Sender:            req.Sender,
		Participants:      req.Participants,
		Amount:            req.Amount,
		Condition:         req.Condition,
		CharityEnabled:    req.CharityEnabled,
		CharityPercentage: req.CharityPercentage,
		CharityAddress:    req.CharityAddress,
		Nonce:             req.Nonce,
		Signature:         req.Signature,
	}
	if _, err := relayer.Verify(sub); err != nil {
		metrics.RelaySubmissionsTotal.WithLabelValues("rejected").Inc()
		status := http.StatusBadRequest
		if errors.Is(err, relayer.ErrSignerMismatch) {
			status = http.StatusForbidden
		}
		writeError(w, err.Error(), status)
		return
	}

	id, status, errMsg := s.create(r, CreateWagerRequest{
		Creator:           req.Sender,
		Participants:      req.Participants,
		Amount:            req.Amount,
		Condition:         req.Condition,
		CharityEnabled:    req.CharityEnabled,
		CharityPercentage: req.CharityPercentage,
		CharityAddress:    req.CharityAddress,
		Payment:           req.Amount, // sponsor stakes exactly the required amount
	})
	if errMsg != "" {
		metrics.RelaySubmissionsTotal.WithLabelValues("rejected").Inc()
		writeError(w, errMsg, status)
		return
	}

	wg, err := s.ledger.GetWager(id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	body, _ := json.Marshal(wg)

	if key != "" && s.idem != nil {
		now := time.Now().UTC()
		err := s.idem.Put(r.Context(), idempotency.Record{
			Key:        key,
			StatusCode: http.StatusCreated,
			Response:   body,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.idemWindow),
		})
		if err != nil {
			slog.Warn("idempotency record write failed", "key", key, "err", err)
		}
	}
	metrics.RelaySubmissionsTotal.WithLabelValues("accepted").Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(body)
}

// OracleCallback handles POST /api/v1/callbacks/oracle
// The route is wrapped by the HMAC middleware; a request reaching this
// handler is already authenticated as the verification service.
func (s *Service) OracleCallback(w http.ResponseWriter, r *http.Request) {
	var req OracleCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.OracleCallbacksTotal.WithLabelValues("rejected").Inc()
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	winner, ok := normalizeAddress(req.Winner)
	if !ok {
		metrics.OracleCallbacksTotal.WithLabelValues("rejected").Inc()
		writeError(w, "winner is not a valid address", http.StatusBadRequest)
		return
	}

	if err := s.resolve(r, req.WagerID, winner, req.Evidence); err != nil {
		metrics.OracleCallbacksTotal.WithLabelValues("rejected").Inc()
		writeError(w, err.Error(), statusForError(err))
		return
	}
	metrics.OracleCallbacksTotal.WithLabelValues("resolved").Inc()

	wg, _ := s.ledger.GetWager(req.WagerID)
	writeJSON(w, http.StatusOK, wg)
}

// Health handles GET /health, reporting the custody balance so operators
// can spot drift at a glance.
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"custody": s.ledger.EscrowBalance().String(),
	})
}

// --- helpers ---

// openExposures sums each address's staked value across open wagers, read
// from the mirror store. Only addresses that actually funded count.
func (s *Service) openExposures(ctx context.Context) (map[string]decimal.Decimal, error) {
	exposures := make(map[string]decimal.Decimal)
	for _, status := range []model.WagerStatus{model.StatusPending, model.StatusActive} {
		wagers, err := s.store.ListWagersByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		for _, wg := range wagers {
			for _, addr := range wg.FundedBy {
				exposures[addr] = exposures[addr].Add(wg.Amount)
			}
		}
	}
	return exposures, nil
}

// mirror writes the wager's current ledger state through to the store. A
// failed write is logged, not surfaced — the indexer repairs the gap on its
// next pass.
func (s *Service) mirror(r *http.Request, id uint64) {
	wg, err := s.ledger.GetWager(id)
	if err != nil {
		return
	}
	if err := s.store.UpsertWager(r.Context(), &wg); err != nil {
		slog.Warn("mirror write failed", "wager_id", id, "err", err)
	}
}

func (s *Service) observeCustody() {
	custody, _ := s.ledger.EscrowBalance().Float64()
	metrics.EscrowCustody.Set(custody)
}

// normalizeAddress validates a hex address and returns its checksummed
// form, so every address compares byte-equal regardless of input casing.
func normalizeAddress(raw string) (string, bool) {
	if !common.IsHexAddress(raw) {
		return "", false
	}
	return common.HexToAddress(raw).Hex(), true
}

func wagerID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "wagerID"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, "invalid wager id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// statusForError maps ledger sentinels to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, escrow.ErrWagerNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrUnauthorized), errors.Is(err, escrow.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrNotPending),
		errors.Is(err, escrow.ErrNotActive),
		errors.Is(err, escrow.ErrNotCancellable),
		errors.Is(err, escrow.ErrWagerBusy),
		errors.Is(err, escrow.ErrTransferFailed):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
