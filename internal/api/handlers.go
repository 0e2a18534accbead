package api

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/splitter"
	"privacy-vault/internal/storage"
	"privacy-vault/internal/vault"
)

type encryptRequest struct {
	Amount string `json:"amount"`
}

type encryptResponse struct {
	Success   bool   `json:"success"`
	CipherHex string `json:"cipherHex"`
	Original  string `json:"original"`
}

// EncryptAmount encrypts one deposit amount client-side.
func (s *Server) EncryptAmount(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: amount %q", domain.ErrInvalidRange, req.Amount))
		return
	}

	ea, err := s.encrypter.Encrypt(r.Context(), amount)
	if err != nil {
		s.metrics.EncryptErrors.WithLabelValues(errLabel(err)).Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.AmountsEncrypted.Inc()
	s.writeJSON(w, http.StatusOK, encryptResponse{Success: true, CipherHex: ea.CipherHex, Original: ea.Original})
}

type createPositionRequest struct {
	Wallet           string  `json:"wallet"`
	Pool             string  `json:"pool"`
	PriceLower       string  `json:"priceLower"`
	PriceUpper       string  `json:"priceUpper"`
	DecimalsA        int     `json:"decimalsA"`
	DecimalsB        int     `json:"decimalsB"`
	PositionMint     string  `json:"positionMint"`
	AmountA          uint64  `json:"amountA"`
	EncryptedAmountA string  `json:"encryptedAmountA"`
	EncryptedAmountB string  `json:"encryptedAmountB"`
	AmountType       uint8   `json:"amountType"`
	MaxAmountA       uint64  `json:"maxAmountA"`
	MaxAmountB       uint64  `json:"maxAmountB"`
	MaxSlippageBps   *uint16 `json:"maxSlippageBps"`
}

// CreatePosition builds an unsigned create/deposit transaction.
func (s *Server) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req createPositionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	owner, err := solana.PublicKeyFromBase58(req.Wallet)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: wallet %q", domain.ErrInvalidRange, req.Wallet))
		return
	}
	pool, err := solana.PublicKeyFromBase58(req.Pool)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: pool %q", domain.ErrInvalidRange, req.Pool))
		return
	}
	positionMint, err := solana.PublicKeyFromBase58(req.PositionMint)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: position mint %q", domain.ErrInvalidRange, req.PositionMint))
		return
	}
	lower, err := decimal.NewFromString(req.PriceLower)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: priceLower %q", domain.ErrInvalidRange, req.PriceLower))
		return
	}
	upper, err := decimal.NewFromString(req.PriceUpper)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: priceUpper %q", domain.ErrInvalidRange, req.PriceUpper))
		return
	}

	res, err := s.positions.CreatePosition(r.Context(), vault.CreatePositionParams{
		Owner:            owner,
		Pool:             pool,
		PriceRange:       &domain.PriceRange{LowerPrice: lower, UpperPrice: upper},
		DecimalsA:        req.DecimalsA,
		DecimalsB:        req.DecimalsB,
		PositionMint:     positionMint,
		EncryptedAmountA: domain.EncryptedAmount{CipherHex: req.EncryptedAmountA},
		EncryptedAmountB: domain.EncryptedAmount{CipherHex: req.EncryptedAmountB},
		AmountType:       req.AmountType,
		InputAmount:      req.AmountA,
		DeclaredMaxA:     req.MaxAmountA,
		DeclaredMaxB:     req.MaxAmountB,
		MaxSlippageBps:   req.MaxSlippageBps,
	})
	s.metrics.RecordBuild("create_position", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTx(w, res.Transaction)
}

type withdrawRequest struct {
	Wallet     string `json:"wallet"`
	Pool       string `json:"pool"`
	Liquidity  string `json:"liquidity"` // decimal string, u128
	MinAmountA uint64 `json:"minAmountA"`
	MinAmountB uint64 `json:"minAmountB"`
	CloseAfter bool   `json:"closeAfter"`
}

// WithdrawPosition builds an unsigned withdraw transaction.
func (s *Server) WithdrawPosition(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	owner, err := solana.PublicKeyFromBase58(req.Wallet)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: wallet %q", domain.ErrInvalidRange, req.Wallet))
		return
	}
	pool, err := solana.PublicKeyFromBase58(req.Pool)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: pool %q", domain.ErrInvalidRange, req.Pool))
		return
	}
	liquidity, err := uint128.FromString(req.Liquidity)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: liquidity %q", domain.ErrInvalidRange, req.Liquidity))
		return
	}

	tx, err := s.positions.WithdrawPosition(r.Context(), owner, pool, liquidity, req.MinAmountA, req.MinAmountB, req.CloseAfter)
	s.metrics.RecordBuild("withdraw_position", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTx(w, tx)
}

type collectRequest struct {
	Wallet string `json:"wallet"`
	Pool   string `json:"pool"`
}

// CollectProfits builds an unsigned profit collection transaction.
func (s *Server) CollectProfits(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	owner, err := solana.PublicKeyFromBase58(req.Wallet)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: wallet %q", domain.ErrInvalidRange, req.Wallet))
		return
	}
	pool, err := solana.PublicKeyFromBase58(req.Pool)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: pool %q", domain.ErrInvalidRange, req.Pool))
		return
	}

	tx, err := s.positions.CollectProfits(r.Context(), owner, pool)
	s.metrics.RecordBuild("collect_profits", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTx(w, tx)
}

type rebalanceRequest struct {
	Wallet          string  `json:"wallet"`
	Pool            string  `json:"pool"`
	NewPositionMint string  `json:"newPositionMint"`
	PriceLower      string  `json:"priceLower"`
	PriceUpper      string  `json:"priceUpper"`
	DecimalsA       int     `json:"decimalsA"`
	DecimalsB       int     `json:"decimalsB"`
	MaxSlippageBps  *uint16 `json:"maxSlippageBps"`
}

// RebalancePosition builds an unsigned rebalance transaction.
func (s *Server) RebalancePosition(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	owner, err := solana.PublicKeyFromBase58(req.Wallet)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: wallet %q", domain.ErrInvalidRange, req.Wallet))
		return
	}
	pool, err := solana.PublicKeyFromBase58(req.Pool)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: pool %q", domain.ErrInvalidRange, req.Pool))
		return
	}
	newMint, err := solana.PublicKeyFromBase58(req.NewPositionMint)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: new position mint %q", domain.ErrInvalidRange, req.NewPositionMint))
		return
	}
	lower, err := decimal.NewFromString(req.PriceLower)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: priceLower %q", domain.ErrInvalidRange, req.PriceLower))
		return
	}
	upper, err := decimal.NewFromString(req.PriceUpper)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: priceUpper %q", domain.ErrInvalidRange, req.PriceUpper))
		return
	}

	tx, err := s.positions.RebalancePosition(r.Context(), owner, pool, newMint,
		domain.PriceRange{LowerPrice: lower, UpperPrice: upper},
		req.DecimalsA, req.DecimalsB, req.MaxSlippageBps)
	s.metrics.RecordBuild("rebalance_position", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTx(w, tx)
}

type planSplitsRequest struct {
	Wallet string `json:"wallet"`
	Pool   string `json:"pool"`
	Amount string `json:"amount"`
}

type planSplitsResponse struct {
	Success bool     `json:"success"`
	PlanID  string   `json:"planId"`
	Amounts []string `json:"amounts"`
}

// PlanSplits carves a deposit into a journaled split plan. The plan's
// units are executed one by one by the client, which signs each
// sub-deposit transaction separately.
func (s *Server) PlanSplits(w http.ResponseWriter, r *http.Request) {
	var req planSplitsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := solana.PublicKeyFromBase58(req.Wallet); err != nil {
		s.writeError(w, fmt.Errorf("%w: wallet %q", domain.ErrInvalidRange, req.Wallet))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: amount %q", domain.ErrInvalidRange, req.Amount))
		return
	}

	s.mu.Lock()
	plan, err := splitter.NewPlan(req.Wallet, req.Pool, amount, s.splitCfg, s.rng)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.journal.Insert(r.Context(), plan); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.RecordPlan(len(plan.Units))

	amounts := make([]string, len(plan.Units))
	for i, u := range plan.Units {
		amounts[i] = u.Amount.String()
	}
	s.log.Info("split plan created",
		zap.String("plan_id", plan.PlanID),
		zap.Int("units", len(plan.Units)))
	s.writeJSON(w, http.StatusOK, planSplitsResponse{Success: true, PlanID: plan.PlanID, Amounts: amounts})
}

type submitRequest struct {
	SignedTransaction string `json:"signedTransaction"` // base64
	PlanID            string `json:"planId,omitempty"`
	UnitIndex         *int   `json:"unitIndex,omitempty"`
}

type submitResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature"`
}

// SubmitTransaction broadcasts a client-signed transaction and blocks
// until finality. When the transaction belongs to a split plan, the
// journaled unit is updated with the outcome.
func (s *Server) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.SignedTransaction)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: signedTransaction is not base64", domain.ErrInvalidRange))
		return
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: malformed transaction", domain.ErrInvalidRange))
		return
	}

	sig, err := s.broadcaster.SendTransaction(r.Context(), tx)
	if err != nil {
		s.recordUnit(r.Context(), req, "", err)
		s.writeError(w, err)
		return
	}

	err = s.confirmer.Await(r.Context(), sig)
	s.recordUnit(r.Context(), req, sig.String(), err)
	if err != nil {
		s.metrics.ConfirmationsTotal.WithLabelValues("failed").Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.ConfirmationsTotal.WithLabelValues("confirmed").Inc()
	s.writeJSON(w, http.StatusOK, submitResponse{Success: true, Signature: sig.String()})
}

// recordUnit journals the outcome of one split unit submission. Journal
// failures are logged and swallowed; the journal is advisory.
func (s *Server) recordUnit(ctx context.Context, req submitRequest, sig string, submitErr error) {
	if req.PlanID == "" || req.UnitIndex == nil {
		return
	}

	plan, err := s.journal.GetByID(ctx, req.PlanID)
	if err != nil {
		s.log.Warn("journal lookup failed", zap.String("plan_id", req.PlanID), zap.Error(err))
		return
	}
	idx := *req.UnitIndex
	if idx < 0 || idx >= len(plan.Units) {
		s.log.Warn("unit index out of range", zap.String("plan_id", req.PlanID), zap.Int("index", idx))
		return
	}

	unit := plan.Units[idx]
	if submitErr != nil {
		unit.Status = domain.SplitFailed
		unit.Err = submitErr.Error()
	} else {
		unit.Status = domain.SplitCompleted
		unit.TxSignature = sig
	}
	s.metrics.RecordUnitOutcome(submitErr != nil)

	if err := s.journal.UpdateUnit(ctx, req.PlanID, unit); err != nil {
		s.log.Warn("journal update failed", zap.String("plan_id", req.PlanID), zap.Error(err))
	}
}

type executeSplitsRequest struct {
	PlanID             string   `json:"planId"`
	SignedTransactions []string `json:"signedTransactions"` // base64, one per pending unit, in plan order
}

type executeSplitsResponse struct {
	Success     bool  `json:"success"`
	FailedUnits []int `json:"failedUnits,omitempty"`
}

// ExecuteSplits submits a journaled plan's pending units in order, waiting
// the configured delay between consecutive submissions. The client signs
// one transaction per pending unit up front; a plan with failed or
// completed units is resumed where it left off.
func (s *Server) ExecuteSplits(w http.ResponseWriter, r *http.Request) {
	var req executeSplitsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	plan, err := s.journal.GetByID(r.Context(), req.PlanID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeJSON(w, http.StatusNotFound, errResponse{Error: fmt.Sprintf("plan %q not found", req.PlanID)})
			return
		}
		s.writeError(w, err)
		return
	}

	pending := 0
	for i := range plan.Units {
		if plan.Units[i].Status == domain.SplitPending {
			pending++
		}
	}
	if len(req.SignedTransactions) != pending {
		s.writeError(w, fmt.Errorf("%w: %d signed transactions for %d pending units",
			domain.ErrInvalidRange, len(req.SignedTransactions), pending))
		return
	}

	txs := make([]*solana.Transaction, len(req.SignedTransactions))
	for i, raw64 := range req.SignedTransactions {
		raw, err := base64.StdEncoding.DecodeString(raw64)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: transaction %d is not base64", domain.ErrInvalidRange, i))
			return
		}
		tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: transaction %d is malformed", domain.ErrInvalidRange, i))
			return
		}
		txs[i] = tx
	}

	next := 0
	runErr := s.executor.Run(r.Context(), plan, func(ctx context.Context, _ *domain.SplitPlan, unit *domain.SplitUnit) error {
		tx := txs[next]
		next++
		sig, err := s.broadcaster.SendTransaction(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.confirmer.Await(ctx, sig); err != nil {
			return err
		}
		unit.TxSignature = sig.String()
		return nil
	})
	switch {
	case runErr == nil:
		s.writeJSON(w, http.StatusOK, executeSplitsResponse{Success: true})
	case errors.Is(runErr, domain.ErrPartialSplitFailure):
		s.writeJSON(w, http.StatusOK, executeSplitsResponse{Success: false, FailedUnits: plan.FailedUnits()})
	default:
		s.writeError(w, runErr)
	}
}

type attestationPayload struct {
	Handle    string `json:"handle"`    // hex, 16 bytes
	Plaintext string `json:"plaintext"` // hex, 16 bytes, little-endian u128
	Signer    string `json:"signer"`    // base58 covalidator key
	Signature string `json:"signature"` // base64, 64 bytes
}

type verifyAttestationsRequest struct {
	Authority    string               `json:"authority"`
	Attestations []attestationPayload `json:"attestations"`
}

type verifyAttestationsResponse struct {
	Success                bool     `json:"success"`
	SerializedTransactions []string `json:"serializedTransactions"`
}

// VerifyAttestations builds one unsigned on-chain verification transaction
// per covalidator attestation, for the authority to sign and submit.
func (s *Server) VerifyAttestations(w http.ResponseWriter, r *http.Request) {
	var req verifyAttestationsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	authority, err := solana.PublicKeyFromBase58(req.Authority)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: authority %q", domain.ErrInvalidRange, req.Authority))
		return
	}

	atts := make([]domain.Attestation, len(req.Attestations))
	for i, p := range req.Attestations {
		att, err := parseAttestation(p)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: attestation %d: %v", domain.ErrInvalidRange, i, err))
			return
		}
		atts[i] = att
	}

	txs, err := s.verifier.BuildVerificationTransactions(r.Context(), authority, atts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]string, len(txs))
	for i, tx := range txs {
		serialized, err := tx.ToBase64()
		if err != nil {
			s.writeError(w, err)
			return
		}
		out[i] = serialized
	}
	s.writeJSON(w, http.StatusOK, verifyAttestationsResponse{Success: true, SerializedTransactions: out})
}

func parseAttestation(p attestationPayload) (domain.Attestation, error) {
	var att domain.Attestation
	h, err := domain.HandleFromHex(p.Handle)
	if err != nil {
		return att, fmt.Errorf("handle: %v", err)
	}
	att.Handle = h

	pt, err := hex.DecodeString(p.Plaintext)
	if err != nil || len(pt) != domain.HandleSize {
		return att, fmt.Errorf("plaintext must be %d hex-encoded bytes", domain.HandleSize)
	}
	copy(att.Plaintext[:], pt)

	signer, err := solana.PublicKeyFromBase58(p.Signer)
	if err != nil {
		return att, fmt.Errorf("signer: %v", err)
	}
	copy(att.Signer[:], signer[:])

	sig, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil || len(sig) != 64 {
		return att, fmt.Errorf("signature must be 64 base64-encoded bytes")
	}
	copy(att.Signature[:], sig)
	return att, nil
}

type planSummary struct {
	PlanID         string `json:"planId"`
	Pool           string `json:"pool"`
	OriginalAmount string `json:"originalAmount"`
	Units          int    `json:"units"`
	Completed      bool   `json:"completed"`
	FailedUnits    []int  `json:"failedUnits,omitempty"`
}

// ListPlans returns the journaled plans for one owner.
func (s *Server) ListPlans(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	if _, err := solana.PublicKeyFromBase58(owner); err != nil {
		s.writeError(w, fmt.Errorf("%w: owner %q", domain.ErrInvalidRange, owner))
		return
	}

	plans, err := s.journal.GetByOwner(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]planSummary, len(plans))
	for i, p := range plans {
		out[i] = planSummary{
			PlanID:         p.PlanID,
			Pool:           p.Pool,
			OriginalAmount: p.OriginalAmount.String(),
			Units:          len(p.Units),
			Completed:      p.Completed(),
			FailedUnits:    p.FailedUnits(),
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "plans": out})
}
