package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"solana-token-manager/internal/domain"
	"solana-token-manager/internal/metrics"
	"solana-token-manager/internal/observability"
	"solana-token-manager/internal/storage"
	"solana-token-manager/internal/verification"
)

// Server exposes health, metrics and the journal over HTTP.
type Server struct {
	programID string
	mint      string
	stores    *allStores
	started   time.Time
	logger    *zap.Logger
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /operations", s.handleOperations)
	mux.HandleFunc("GET /operations/{signature}", s.handleTransaction)
	mux.HandleFunc("GET /supply", s.handleSupply)
	mux.HandleFunc("GET /metadata", s.handleMetadata)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /verify", s.handleVerify)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// OperationResponse is the JSON form of a journaled operation.
type OperationResponse struct {
	OperationID string  `json:"operation_id"`
	Signature   string  `json:"signature"`
	Index       int     `json:"index"`
	Slot        int64   `json:"slot"`
	BlockTime   int64   `json:"block_time_ms,omitempty"`
	Kind        string  `json:"kind"`
	Quantity    uint64  `json:"quantity,string"`
	Success     bool    `json:"success"`
	Error       *string `json:"error,omitempty"`
}

// SupplyResponse is the JSON form of a supply snapshot.
type SupplyResponse struct {
	Slot      int64  `json:"slot"`
	Signature string `json:"signature"`
	Supply    uint64 `json:"supply,string"`
	Decimals  int    `json:"decimals"`
	TakenAt   int64  `json:"taken_at_ms"`
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status          string             `json:"status"`
	Uptime          string             `json:"uptime"`
	ProgramID       string             `json:"program_id"`
	Mint            string             `json:"mint"`
	CheckpointSlot  int64              `json:"checkpoint_slot,omitempty"`
	CheckpointSig   string             `json:"checkpoint_signature,omitempty"`
	LatestOperation *OperationResponse `json:"latest_operation,omitempty"`
	LatestSupply    *SupplyResponse    `json:"latest_supply,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Status:    "running",
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		ProgramID: s.programID,
		Mint:      s.mint,
	}

	p, err := s.stores.progressStore.GetLastProcessed(ctx, s.programID)
	switch {
	case err == nil:
		resp.CheckpointSlot, resp.CheckpointSig = p.Slot, p.Signature
	case !errors.Is(err, storage.ErrNotFound):
		s.fail(w, err)
		return
	}

	op, err := s.stores.operationStore.Latest(ctx, s.programID)
	switch {
	case err == nil:
		o := operationResponse(op)
		resp.LatestOperation = &o
	case !errors.Is(err, storage.ErrNotFound):
		s.fail(w, err)
		return
	}

	snap, err := s.stores.supplyStore.Latest(ctx, s.mint)
	switch {
	case err == nil:
		sr := supplyResponse(snap)
		resp.LatestSupply = &sr
	case !errors.Is(err, storage.ErrNotFound):
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	from, err := slotParam(r, "from_slot", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := slotParam(r, "to_slot", 1<<62)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ops, err := s.stores.operationStore.GetBySlotRange(r.Context(), s.programID, from, to)
	if errors.Is(err, storage.ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponses(ops))
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	ops, err := s.stores.operationStore.GetBySignature(r.Context(), r.PathValue("signature"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(ops) == 0 {
		http.Error(w, "transaction not journaled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, operationResponses(ops))
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.stores.supplyStore.GetByMint(r.Context(), s.mint)
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := make([]SupplyResponse, 0, len(snaps))
	for _, snap := range snaps {
		resp = append(resp, supplyResponse(snap))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := s.stores.metadataStore.GetByMint(r.Context(), s.mint)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "token not initialized", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mint":             md.Mint,
		"name":             md.Name,
		"symbol":           md.Symbol,
		"uri":              md.URI,
		"decimals":         md.Decimals,
		"update_authority": md.UpdateAuthority,
		"signature":        md.Signature,
		"slot":             md.Slot,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, err := slotParam(r, "from_slot", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := slotParam(r, "to_slot", 1<<62)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := metrics.NewAggregator(s.stores.operationStore).Summarize(r.Context(), s.programID, from, to)
	if errors.Is(err, metrics.ErrNoOperations) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	kinds := make(map[string]interface{}, len(summary.Kinds))
	for _, k := range summary.Kinds {
		kinds[string(k.Kind)] = map[string]interface{}{
			"count":     k.Count,
			"succeeded": k.Succeeded,
			"failed":    k.Failed,
			"quantity":  k.Quantity.String(),
		}
	}
	errorCounts := make(map[string]int, len(summary.Errors))
	for _, e := range summary.Errors {
		errorCounts[e.Error] = e.Count
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from_slot":    summary.FromSlot,
		"to_slot":      summary.ToSlot,
		"transactions": summary.Transactions,
		"operations":   summary.Operations,
		"kinds":        kinds,
		"errors":       errorCounts,
		"net_supply":   summary.NetSupply.String(),
		"failure_rate": summary.FailureRate,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := verification.NewVerifier(s.stores.operationStore, s.stores.supplyStore).
		VerifySupply(r.Context(), s.programID, s.mint)
	if err != nil {
		s.fail(w, err)
		return
	}

	divergences := make([]map[string]interface{}, 0, len(report.Divergences))
	for _, d := range report.Divergences {
		divergences = append(divergences, map[string]interface{}{
			"slot":      d.Slot,
			"signature": d.Signature,
			"expected":  d.Expected.String(),
			"actual":    strconv.FormatUint(d.Actual, 10),
		})
	}
	status := http.StatusOK
	if !report.Consistent() {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{
		"consistent":  report.Consistent(),
		"snapshots":   report.Snapshots,
		"matched":     report.MatchedSnapshots,
		"minted":      report.Minted.String(),
		"burned":      report.Burned.String(),
		"divergences": divergences,
	})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func slotParam(r *http.Request, name string, def int64) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	slot, err := strconv.ParseInt(v, 10, 64)
	if err != nil || slot < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return slot, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func operationResponse(op *domain.Operation) OperationResponse {
	return OperationResponse{
		OperationID: op.OperationID,
		Signature:   op.Signature,
		Index:       op.Index,
		Slot:        op.Slot,
		BlockTime:   op.BlockTime,
		Kind:        string(op.Kind),
		Quantity:    op.Quantity,
		Success:     op.Success,
		Error:       op.Error,
	}
}

func operationResponses(ops []*domain.Operation) []OperationResponse {
	resp := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		resp = append(resp, operationResponse(op))
	}
	return resp
}

func supplyResponse(snap *domain.SupplySnapshot) SupplyResponse {
	return SupplyResponse{
		Slot:      snap.Slot,
		Signature: snap.Signature,
		Supply:    snap.Supply,
		Decimals:  snap.Decimals,
		TakenAt:   snap.TakenAt,
	}
}
