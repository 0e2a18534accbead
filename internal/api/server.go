// Package api exposes the transaction-building boundary to the UI layer.
// Every mutating endpoint returns an unsigned transaction for client-side
// signing; the server never holds keys.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
	"privacy-vault/internal/splitter"
	"privacy-vault/internal/storage"
	"privacy-vault/internal/vault"
)

// PositionService builds unsigned lifecycle transactions.
type PositionService interface {
	CreatePosition(ctx context.Context, p vault.CreatePositionParams) (*vault.CreatePositionResult, error)
	WithdrawPosition(ctx context.Context, owner, pool solana.PublicKey, liquidity uint128.Uint128, minA, minB uint64, closeAfter bool) (*solana.Transaction, error)
	CollectProfits(ctx context.Context, owner, pool solana.PublicKey) (*solana.Transaction, error)
	RebalancePosition(ctx context.Context, owner, pool, newPositionMint solana.PublicKey, newRange domain.PriceRange, decimalsA, decimalsB int, maxSlippageBps *uint16) (*solana.Transaction, error)
}

// Encrypter encrypts deposit amounts client-side.
type Encrypter interface {
	Encrypt(ctx context.Context, amount decimal.Decimal) (domain.EncryptedAmount, error)
}

// Broadcaster submits signed transactions to the ledger.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// ConfirmationWaiter blocks until a signature reaches finality.
type ConfirmationWaiter interface {
	Await(ctx context.Context, sig solana.Signature) error
}

// AttestationVerifier builds unsigned on-chain verification transactions
// for covalidator attestations, one transaction per attestation.
type AttestationVerifier interface {
	BuildVerificationTransactions(ctx context.Context, authority solana.PublicKey, atts []domain.Attestation) ([]*solana.Transaction, error)
}

// Server is the HTTP boundary.
type Server struct {
	positions   PositionService
	encrypter   Encrypter
	broadcaster Broadcaster
	confirmer   ConfirmationWaiter
	verifier    AttestationVerifier
	journal     storage.SplitPlanStore
	executor    *splitter.Executor
	splitCfg    domain.SplitConfig
	metrics     *observability.Metrics
	log         *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	router http.Handler
}

// NewServer creates the API server.
func NewServer(
	positions PositionService,
	encrypter Encrypter,
	broadcaster Broadcaster,
	confirmer ConfirmationWaiter,
	verifier AttestationVerifier,
	journal storage.SplitPlanStore,
	splitCfg domain.SplitConfig,
	metrics *observability.Metrics,
	rng *rand.Rand,
	log *zap.Logger,
) *Server {
	s := &Server{
		positions:   positions,
		encrypter:   encrypter,
		broadcaster: broadcaster,
		confirmer:   confirmer,
		verifier:    verifier,
		journal:     journal,
		executor:    splitter.NewExecutor(journal, splitCfg.DelayBetweenSplits, metrics, log),
		splitCfg:    splitCfg,
		metrics:     metrics,
		rng:         rng,
		log:         log,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.Health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/encrypt", s.EncryptAmount)
		api.Post("/positions", s.CreatePosition)
		api.Post("/positions/withdraw", s.WithdrawPosition)
		api.Post("/positions/collect", s.CollectProfits)
		api.Post("/positions/rebalance", s.RebalancePosition)
		api.Post("/splits/plan", s.PlanSplits)
		api.Post("/splits/execute", s.ExecuteSplits)
		api.Get("/splits/{owner}", s.ListPlans)
		api.Post("/attestations/verify", s.VerifyAttestations)
		api.Post("/transactions/submit", s.SubmitTransaction)
	})

	return r
}

// txResponse is the success shape every build endpoint shares.
type txResponse struct {
	Success               bool   `json:"success"`
	SerializedTransaction string `json:"serializedTransaction"`
}

type errResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP statuses. Validation errors are
// the caller's fault; ledger-side preconditions are conflicts.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch observability.ErrorType(err) {
	case "invalid_range", "scale_overflow", "quote_exceeds_max":
		status = http.StatusBadRequest
	case "slippage_exceeded", "vault_busy", "vault_paused":
		status = http.StatusConflict
	case "pool_not_found", "vault_not_found", "position_not_found":
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, errResponse{Error: err.Error()})
}

func (s *Server) writeTx(w http.ResponseWriter, tx *solana.Transaction) {
	serialized, err := tx.ToBase64()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txResponse{Success: true, SerializedTransaction: serialized})
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody parses a JSON request body, capped at 1 MiB.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidRange, err)
	}
	return nil
}

func errLabel(err error) string {
	return observability.ErrorType(err)
}
