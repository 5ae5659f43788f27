package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	// Load env vars from .env for local/dev
	_ "github.com/joho/godotenv/autoload"

	"emochain/core/auth"
	"emochain/core/block"
	"emochain/core/chain"
	"emochain/core/mempool"
	"emochain/core/state"
	"emochain/core/storage"
	"emochain/core/validator"
	"emochain/types/ids"
)

// --- Environment Variable Config ---
// All sensitive/configurable values are loaded from environment variables.
// See example.env for variable names and dummy values.

var (
	enableHTTPS = os.Getenv("ENABLE_HTTPS")  // Enable HTTPS (true/false)
	tlsCertPath = os.Getenv("TLS_CERT_PATH") // TLS certificate path
	tlsKeyPath  = os.Getenv("TLS_KEY_PATH")  // TLS key path
)

// rateLimitPerMinute reads RATE_LIMIT_PER_MIN. Default 3000 requests per
// minute per client.
func rateLimitPerMinute() int {
	if v := os.Getenv("RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 3000
}

// defaultConfirmationDepth applies when the genesis params omit one.
const defaultConfirmationDepth = 6

type Server struct {
	store      *storage.Storage
	chain      *chain.Chain
	pool       *mempool.Mempool
	registry   *validator.Registry
	ledger     *state.Ledger
	authorizer *auth.Authorizer
	limiter    *clientLimiter
	Feed       *BlockFeed
	ListenAddr string

	// ConfirmDepth is the block depth at which the node reports a height
	// as final. Set from the genesis initial params.
	ConfirmDepth int
}

func NewServer(store *storage.Storage, ch *chain.Chain, pool *mempool.Mempool, registry *validator.Registry, ledger *state.Ledger, authorizer *auth.Authorizer, listenAddr string) *Server {
	return &Server{
		store:      store,
		chain:      ch,
		pool:       pool,
		registry:   registry,
		ledger:     ledger,
		authorizer: authorizer,
		limiter:    newClientLimiter(rateLimitPerMinute(), store),
		Feed:       NewBlockFeed(),
		ListenAddr: listenAddr,
	}
}

// routes registers every endpoint on the given mux.
func (s *Server) routes(mux *http.ServeMux) {
	// Modular health/status endpoints
	mux.HandleFunc("/nodehealth", s.HandleNodeHealth)
	mux.HandleFunc("/health/liveness", s.HandleLiveness)
	mux.HandleFunc("/health/readiness", s.HandleReadiness)
	mux.HandleFunc("/status", s.HandleStatus)

	// Chain read endpoints
	mux.HandleFunc("/chain_height", s.handleChainHeight)
	mux.HandleFunc("/get_block/", s.handleGetBlock)
	mux.HandleFunc("/get_block_by_height", s.handleGetBlockByHeight)
	mux.HandleFunc("/list_blocks", s.handleListBlocks)
	mux.HandleFunc("/get_chain_tip", s.handleGetChainTip)
	mux.HandleFunc("/blocks", s.handleBlocksQuery)

	// State and consensus read endpoints
	mux.HandleFunc("/balance", s.handleBalance)
	mux.HandleFunc("/validators", s.handleValidators)
	mux.HandleFunc("/mempool", s.handleMempool)

	// Live sync: websocket block feed
	mux.HandleFunc("/ws/blocks", s.handleBlockFeed)

	// CLI-specific JSON endpoints
	mux.HandleFunc("/api/cli/status", s.handleCLIStatus)
	mux.HandleFunc("/api/cli/mempool", s.handleCLIMempool)
	mux.HandleFunc("/api/cli/submit-transfer", s.handleCLISubmitTransfer)

	// Submission endpoints
	RegisterSubmissionAPI(mux, s)

	// Dev-only inspection
	RegisterDevTxInspectAPI(mux, s)
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.routes(mux)

	fmt.Println("API server listening at", s.ListenAddr)

	if enableHTTPS == "true" {
		fmt.Println("[HTTPS] Enabled. Using cert:", tlsCertPath, "key:", tlsKeyPath)
		return http.ListenAndServeTLS(s.ListenAddr, tlsCertPath, tlsKeyPath, mux)
	}
	fmt.Println("[HTTPS] Disabled. Serving HTTP only!")
	return http.ListenAndServe(s.ListenAddr, mux)
}

// guard applies the ban check and rate limit to a request. Handlers bail
// out when it returns false.
func (s *Server) guard(w http.ResponseWriter, r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if s.limiter.IsBanned(host) {
		http.Error(w, "forbidden: banned", http.StatusForbidden)
		fmt.Printf("[BAN] Blocked %s from banned client: %s\n", r.URL.Path, host)
		return false
	}
	if !s.limiter.Allow(host) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		fmt.Printf("[RATE LIMIT] Blocked %s from %s\n", r.URL.Path, host)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleChainHeight(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]uint64{"chainHeight": s.chain.Height()})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	blockIDHex := strings.TrimPrefix(r.URL.Path, "/get_block/")
	if blockIDHex == "" {
		http.Error(w, "block ID required", http.StatusBadRequest)
		return
	}
	blockID, err := ids.FromString(blockIDHex)
	if err != nil {
		http.Error(w, "invalid block ID format", http.StatusBadRequest)
		return
	}
	blk, err := s.chain.BlockByID(blockID)
	if err != nil {
		http.Error(w, fmt.Sprintf("block not found: %v", err), http.StatusNotFound)
		return
	}
	writeJSON(w, blk)
}

func (s *Server) handleGetBlockByHeight(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	heightStr := r.URL.Query().Get("height")
	height, err := strconv.ParseUint(heightStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid height", http.StatusBadRequest)
		return
	}
	blk, err := s.chain.BlockByHeight(height)
	if err != nil {
		http.Error(w, fmt.Sprintf("block not found: %v", err), http.StatusNotFound)
		return
	}
	writeJSON(w, blk)
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	const maxBlocks = 10
	summaries, err := s.store.ListRecentBlocks(maxBlocks)
	if err != nil {
		http.Error(w, fmt.Sprintf("could not list blocks: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

// FinalizedHeight is the highest height buried deep enough to be treated
// as settled. Zero until the chain outgrows the confirmation depth.
func (s *Server) FinalizedHeight() uint64 {
	depth := s.ConfirmDepth
	if depth <= 0 {
		depth = defaultConfirmationDepth
	}
	height := s.chain.Height()
	if height < uint64(depth) {
		return 0
	}
	return height - uint64(depth)
}

func (s *Server) handleGetChainTip(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	tip := s.chain.Tip()
	writeJSON(w, map[string]any{
		"latestBlockID":   tip.Hash.String(),
		"height":          tip.Index,
		"finalizedHeight": s.FinalizedHeight(),
	})
}

// handleBlocksQuery provides batch, filtered, and paginated block
// retrieval via the /blocks endpoint.
func (s *Server) handleBlocksQuery(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	start := uint64(0)
	tipHeight := s.chain.Height()
	end := tipHeight
	validatorAddr := ""
	limit := 10
	offset := uint64(0)
	const maxLimit = 100

	q := r.URL.Query()
	var err error
	if v := q.Get("start"); v != "" {
		start, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid start height", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("end"); v != "" {
		end, err = strconv.ParseUint(v, 10, 64)
		if err != nil || end < start {
			http.Error(w, "invalid end height", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("validator"); v != "" {
		validatorAddr = v
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
	}

	if end > tipHeight {
		end = tipHeight
	}
	paginatedStart := start + offset
	blocks := []*block.Block{}
	if paginatedStart > end {
		writeJSON(w, blocks)
		return
	}
	for h := paginatedStart; h <= end && len(blocks) < limit; h++ {
		blk, err := s.chain.BlockByHeight(h)
		if err != nil {
			continue
		}
		if validatorAddr != "" && blk.ValidatorAddress != validatorAddr {
			continue
		}
		blocks = append(blocks, blk)
	}
	writeJSON(w, blocks)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	addr := r.URL.Query().Get("address")
	if addr == "" {
		http.Error(w, "address required", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{
		"address": addr,
		"balance": s.ledger.Balance(addr),
	})
}

func (s *Server) handleValidators(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	type validatorView struct {
		validator.Validator
		Eligible bool `json:"eligible"`
	}
	snapshot := s.registry.Snapshot()
	out := make([]validatorView, 0, len(snapshot))
	for _, v := range snapshot {
		out = append(out, validatorView{Validator: v, Eligible: v.Eligible()})
	}
	writeJSON(w, map[string]any{
		"validators":     out,
		"consensusScore": s.registry.ConsensusScore(),
		"scoreSpread":    s.registry.ScoreSpread(),
	})
}

func (s *Server) handleMempool(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	writeJSON(w, s.pool.PendingTxs())
}

func (s *Server) handleBlockFeed(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	s.Feed.HandleSubscribe(w, r)
}

// --- CLI-specific JSON endpoints ---

// Returns node status as JSON
func (s *Server) handleCLIStatus(w http.ResponseWriter, r *http.Request) {
	tip := s.chain.Tip()
	writeJSON(w, map[string]any{
		"name":    "EmoChain Node",
		"status":  deriveNodeStatus(s, s.GetNodeMetrics()),
		"height":  tip.Index,
		"tip":     tip.Hash.String(),
		"mempool": s.pool.Len(),
	})
}

// Returns mempool as JSON array
func (s *Server) handleCLIMempool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.pool.PendingTxs())
}

// Accepts POST, always returns JSON
func (s *Server) handleCLISubmitTransfer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}
	var tx block.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid payload"})
		return
	}
	if err := s.admitTransfer(&tx); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"result": "transfer submitted", "txId": tx.ID()})
}
