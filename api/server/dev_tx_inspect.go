//Dev delete upon production migration
// This endpoint is for development/testing only. It allows inspection of a transaction's decoded contents by txID.
package server

import (
	"net/http"
	"strings"
)

// RegisterDevTxInspectAPI registers the dev-only transaction inspection endpoint.
func RegisterDevTxInspectAPI(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("/dev/inspect_tx", s.handleDevInspectTx)
}

// handleDevInspectTx returns the decoded transaction contents for a given txID (dev only)
func (s *Server) handleDevInspectTx(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	txID := r.URL.Query().Get("txId")
	if txID == "" {
		http.Error(w, "missing txId parameter", http.StatusBadRequest)
		return
	}

	// 1. Search mempool
	if tx, ok := s.pool.GetTx(txID); ok {
		writeJSON(w, map[string]interface{}{
			"txId":     txID,
			"location": "mempool",
			"tx":       tx,
		})
		return
	}

	// 2. Search the expired pool
	if rec, ok := s.pool.ExpiredPool.GetExpiredTx(txID); ok {
		writeJSON(w, map[string]interface{}{
			"txId":     txID,
			"location": "expired",
			"record":   rec,
		})
		return
	}

	// 3. Walk the chain if not pending
	tipHeight := s.chain.Height()
	for h := uint64(0); h <= tipHeight; h++ {
		blk, err := s.chain.BlockByHeight(h)
		if err != nil {
			continue
		}
		for _, tx := range blk.Transactions {
			if strings.EqualFold(tx.ID(), txID) {
				writeJSON(w, map[string]interface{}{
					"txId":     txID,
					"location": "chain",
					"height":   h,
					"blockId":  blk.Hash.String(),
					"tx":       tx,
				})
				return
			}
		}
	}

	http.Error(w, "tx not found", http.StatusNotFound)
}
