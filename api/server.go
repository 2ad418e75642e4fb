// Package api exposes the commit protocol and ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"votechain-backend/auth"
	"votechain-backend/config"
	"votechain-backend/ledger"
	"votechain-backend/models"
	"votechain-backend/service"
	"votechain-backend/storage"
)

type Server struct {
	cfg         *config.Config
	store       *storage.Store
	chain       *ledger.Ledger
	coordinator *service.Coordinator
	tally       *service.TallyService
	metrics     *service.MetricsCollector
	signer      *service.ReceiptSigner
}

func NewServer(
	cfg *config.Config,
	store *storage.Store,
	chain *ledger.Ledger,
	coordinator *service.Coordinator,
	tally *service.TallyService,
	metrics *service.MetricsCollector,
	signer *service.ReceiptSigner,
) *Server {
	return &Server{
		cfg:         cfg,
		store:       store,
		chain:       chain,
		coordinator: coordinator,
		tally:       tally,
		metrics:     metrics,
		signer:      signer,
	}
}

// Routes registers every handler on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/login", s.handleLogin)

	mux.HandleFunc("/api/vote/request-code", s.handleRequestCode)
	mux.HandleFunc("/api/vote/verify-code", s.handleVerifyCode)
	mux.HandleFunc("/api/vote", s.handleDirectVote)

	mux.HandleFunc("/api/public/verify", s.handlePublicVerify)

	mux.HandleFunc("/api/blockchain", s.handleGetChain)
	mux.HandleFunc("/api/blockchain/block", s.handleGetBlock)
	mux.HandleFunc("/api/blockchain/validate", s.handleValidateChain)

	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/results", s.handleResults)

	mux.HandleFunc("/api/elections", s.handleCreateElection)
	mux.HandleFunc("/api/elections/close", s.handleCloseElection)
}

type registerRequest struct {
	Email          string    `json:"email"`
	Password       string    `json:"password"`
	FaceDescriptor []float64 `json:"face_descriptor,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if len(req.FaceDescriptor) != 0 && len(req.FaceDescriptor) != service.DescriptorLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("face descriptor must have %d components", service.DescriptorLength))
		return
	}

	voter := &models.Voter{
		ID:             uuid.New().String(),
		Email:          req.Email,
		PasswordHash:   service.HashPassword(req.Password),
		FaceDescriptor: req.FaceDescriptor,
	}
	if err := s.store.CreateVoter(voter); err != nil {
		slog.Error("failed to register voter", "error", err)
		writeError(w, http.StatusBadRequest, "registration failed")
		return
	}

	slog.Info("voter registered", "voter_id", voter.ID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"voter_id": voter.ID,
		"email":    voter.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	voter, err := s.store.VoterByEmail(req.Email)
	if err != nil || !service.VerifyPassword(req.Password, voter.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token := auth.IssueToken(voter.ID, s.cfg.TokenSecret, s.cfg.TokenTTL)
	writeJSON(w, http.StatusOK, map[string]string{
		"token":    token,
		"voter_id": voter.ID,
	})
}

type voteRequest struct {
	ElectionID     string    `json:"election_id"`
	CandidateID    string    `json:"candidate_id"`
	FaceDescriptor []float64 `json:"face_descriptor,omitempty"`
	Password       string    `json:"password,omitempty"`
}

func (s *Server) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	voterID, ok := s.voterFromRequest(w, r)
	if !ok {
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ElectionID == "" || req.CandidateID == "" {
		writeError(w, http.StatusBadRequest, "election_id and candidate_id are required")
		return
	}

	masked, err := s.coordinator.RequestCode(r.Context(), voterID, req.ElectionID, req.CandidateID, models.Credentials{
		FaceDescriptor: req.FaceDescriptor,
		Password:       req.Password,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "code sent successfully",
		"email":   masked,
	})
}

type verifyCodeRequest struct {
	ElectionID string `json:"election_id"`
	Code       string `json:"code"`
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	voterID, ok := s.voterFromRequest(w, r)
	if !ok {
		return
	}

	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ElectionID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "election_id and code are required")
		return
	}

	receipt, err := s.coordinator.VerifyAndCommit(r.Context(), voterID, req.ElectionID, req.Code)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "vote cast successfully",
		"receipt": receipt,
	})
}

func (s *Server) handleDirectVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	voterID, ok := s.voterFromRequest(w, r)
	if !ok {
		return
	}

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ElectionID == "" || req.CandidateID == "" {
		writeError(w, http.StatusBadRequest, "election_id and candidate_id are required")
		return
	}

	receipt, err := s.coordinator.DirectCommit(r.Context(), voterID, req.ElectionID, req.CandidateID, models.Credentials{
		FaceDescriptor: req.FaceDescriptor,
		Password:       req.Password,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "vote cast successfully",
		"receipt": receipt,
	})
}

func (s *Server) handlePublicVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	lookup, err := s.tally.Lookup(code)
	if err != nil {
		slog.Error("public verify failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, lookup)
}

type chainResponse struct {
	BlockCount int             `json:"block_count"`
	Blocks     []*models.Block `json:"blocks"`
	IsValid    bool            `json:"is_valid"`
	LastHash   string          `json:"last_hash"`
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	blocks, err := s.chain.Chain()
	if err != nil {
		slog.Error("failed to load chain", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chain")
		return
	}

	response := chainResponse{
		BlockCount: len(blocks),
		Blocks:     blocks,
		IsValid:    models.ValidateChain(blocks, s.cfg.Difficulty),
	}
	if len(blocks) > 0 {
		response.LastHash = blocks[len(blocks)-1].Hash
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	index, err := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block index")
		return
	}

	block, err := s.chain.BlockByIndex(index)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		slog.Error("failed to load block", "index", index, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load block")
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleValidateChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	valid, err := s.chain.Verify(s.cfg.Difficulty)
	if err != nil {
		slog.Error("chain validation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to validate chain")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid, "halted": s.chain.Halted()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.tally.Stats(s.metrics)
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	response := map[string]any{"stats": stats}
	if s.signer != nil {
		response["operator_address"] = s.signer.OperatorAddress()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	electionID := r.URL.Query().Get("election")
	if electionID == "" {
		writeError(w, http.StatusBadRequest, "election is required")
		return
	}

	results, err := s.tally.Results(electionID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	if err != nil {
		slog.Error("failed to tally results", "election_id", electionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to tally results")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type createElectionRequest struct {
	Title      string `json:"title"`
	Status     string `json:"status,omitempty"`
	Candidates []struct {
		Name     string `json:"name"`
		Party    string `json:"party"`
		ImageURL string `json:"image_url,omitempty"`
	} `json:"candidates"`
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || len(req.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, "title and candidates are required")
		return
	}

	status := req.Status
	if status == "" {
		status = models.ElectionStatusActive
	}

	election := &models.Election{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Status:    status,
		StartTime: time.Now().UnixMilli(),
	}
	for _, c := range req.Candidates {
		election.Candidates = append(election.Candidates, models.Candidate{
			ID:       uuid.New().String(),
			Name:     c.Name,
			Party:    c.Party,
			ImageURL: c.ImageURL,
		})
	}

	if err := s.store.CreateElection(election); err != nil {
		slog.Error("failed to create election", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create election")
		return
	}

	slog.Info("election created", "election_id", election.ID, "title", election.Title)
	writeJSON(w, http.StatusCreated, election)
}

type closeElectionRequest struct {
	ElectionID string `json:"election_id"`
}

func (s *Server) handleCloseElection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req closeElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.store.SetElectionStatus(req.ElectionID, models.ElectionStatusClosed)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	if err != nil {
		slog.Error("failed to close election", "election_id", req.ElectionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to close election")
		return
	}

	slog.Info("election closed", "election_id", req.ElectionID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// voterFromRequest resolves the bearer token to a voter id, writing the
// error response itself on failure.
func (s *Server) voterFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		writeError(w, http.StatusUnauthorized, "bearer token required")
		return "", false
	}

	voterID, err := auth.VerifyToken(token, s.cfg.TokenSecret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return "", false
	}
	return voterID, true
}

// writeServiceError maps the protocol error taxonomy to HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var mismatch *service.CodeMismatchError
	switch {
	case errors.Is(err, service.ErrMissingCredential):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthorizationFailed):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrElectionClosed),
		errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, service.ErrCodeExpired),
		errors.Is(err, service.ErrCodeInvalidated):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &mismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrNotifierFailure):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrChainIntegrity), errors.Is(err, ledger.ErrLedgerHalted):
		// Operator-level fault: never presented as a user mistake.
		slog.Error("ledger fault", "error", err)
		writeError(w, http.StatusInternalServerError, "ledger unavailable")
	default:
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
