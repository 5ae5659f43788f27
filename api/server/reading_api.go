package server

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"emochain/core/audit"
	"emochain/core/biometric"
	"emochain/core/block"
	"emochain/core/mempool"
	"emochain/core/validation"
)

// resubmitWindow bounds how old an expired transaction may be and still be
// pushed back into the mempool unchanged. Anything older must be re-signed
// by the wallet, because the signature covers the original timestamp.
const resubmitWindow = 30 * time.Minute

var errInsufficientCover = errors.New("sender cannot cover amount plus fee")

// errAlreadyMined rejects resubmission of a transaction an accepted block
// already carries.
var errAlreadyMined = errors.New("transaction already mined")

// getAPISecret fetches the API secret/token from env
func getAPISecret() string {
	return os.Getenv("API_JWT_SECRET") // Set this in example.env
}

// auditEvent forwards to the authorizer's audit trail so reading ingestion
// outcomes land next to the authorization decisions.
func (s *Server) auditEvent(e audit.Event) {
	if s.authorizer == nil || s.authorizer.AuditLogger == nil {
		return
	}
	s.authorizer.AuditLogger.LogEvent(e)
}

// Middleware for JWT/API key authentication (enforce either JWT or API key)
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtSecret := getAPISecret()
		apiKey := os.Getenv("API_KEY")
		authHeader := r.Header.Get("Authorization")
		xApiKey := r.Header.Get("X-API-Key")

		jwtValid := false
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == jwtSecret && token != "" {
				jwtValid = true
			}
		}
		apiKeyValid := (xApiKey != "" && apiKey != "" && xApiKey == apiKey)

		if !jwtValid && !apiKeyValid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ReadingSubmission is the wire envelope for biometric reading submissions.
// Record is the raw schema-validated payload; the signature covers its
// canonical JSON serialization.
type ReadingSubmission struct {
	Record        map[string]interface{} `json:"record"`
	WalletAddress string                 `json:"walletAddress"`
	PublicKey     string                 `json:"publicKey"` // hex, compressed secp256k1
	Signature     string                 `json:"signature"` // base64 DER
}

// readingFromRecord lifts the schema-validated record into a Reading,
// stamping it with the capture time in epoch ms.
func readingFromRecord(record map[string]interface{}) (biometric.Reading, error) {
	capturedAt, _ := record["capturedAt"].(string)
	if err := validation.EnforceTimestampFormat(capturedAt); err != nil {
		return biometric.Reading{}, err
	}
	captured, err := time.Parse(time.RFC3339, capturedAt)
	if err != nil {
		return biometric.Reading{}, fmt.Errorf("capturedAt: %w", err)
	}
	raw, ok := record["reading"].(map[string]interface{})
	if !ok {
		return biometric.Reading{}, errors.New("reading object missing")
	}
	num := func(field string) (float64, error) {
		v, ok := raw[field].(float64)
		if !ok {
			return 0, fmt.Errorf("reading field %q missing or not numeric", field)
		}
		return v, nil
	}
	hr, err := num("heartRate")
	if err != nil {
		return biometric.Reading{}, err
	}
	stress, err := num("stressLevel")
	if err != nil {
		return biometric.Reading{}, err
	}
	focus, err := num("focusLevel")
	if err != nil {
		return biometric.Reading{}, err
	}
	auth, err := num("authenticity")
	if err != nil {
		return biometric.Reading{}, err
	}
	return biometric.Reading{
		HeartRate:    hr,
		StressLevel:  stress,
		FocusLevel:   focus,
		Authenticity: auth,
		Timestamp:    captured.UnixMilli(),
	}, nil
}

// Handler for submitting biometric readings
func (s *Server) SubmitReadingHandler(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var sub ReadingSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := validation.ValidateReadingMap(sub.Record); err != nil {
		http.Error(w, "Invalid reading: "+err.Error(), http.StatusBadRequest)
		return
	}
	// The signed record must claim the wallet that signed the envelope.
	if addr, _ := sub.Record["walletAddress"].(string); addr != sub.WalletAddress {
		http.Error(w, "record wallet does not match submission wallet", http.StatusBadRequest)
		return
	}

	payload, err := json.Marshal(sub.Record)
	if err != nil {
		http.Error(w, "Failed to serialize record", http.StatusInternalServerError)
		return
	}
	pubKey, err := hex.DecodeString(sub.PublicKey)
	if err != nil {
		http.Error(w, "invalid public key encoding", http.StatusBadRequest)
		return
	}
	sig, err := base64.StdEncoding.DecodeString(sub.Signature)
	if err != nil {
		http.Error(w, "invalid signature encoding", http.StatusBadRequest)
		return
	}

	deviceToken := r.Header.Get("X-Device-Token")
	if deviceToken == "" {
		http.Error(w, "Missing device token (X-Device-Token header required)", http.StatusUnauthorized)
		return
	}

	result := s.authorizer.AuthorizeSubmission(payload, sig, pubKey, sub.WalletAddress, deviceToken)
	if !result.Authorized {
		http.Error(w, "Unauthorized: "+result.Reason, http.StatusUnauthorized)
		return
	}

	v, ok := s.registry.GetByAddress(sub.WalletAddress)
	if !ok {
		http.Error(w, "no validator registered for wallet "+sub.WalletAddress, http.StatusNotFound)
		return
	}

	reading, err := readingFromRecord(sub.Record)
	if err != nil {
		http.Error(w, "Invalid reading: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.registry.SubmitReading(v.ID, reading); err != nil {
		s.auditEvent(audit.Event{
			EventType: "ReadingIngestion",
			EntityID:  v.ID,
			Result:    "failure",
			Reason:    err.Error(),
			Timestamp: time.Now().UTC(),
		})
		http.Error(w, "Reading rejected: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.auditEvent(audit.Event{
		EventType: "ReadingIngestion",
		EntityID:  v.ID,
		Result:    "success",
		Reason:    "reading accepted",
		Timestamp: time.Now().UTC(),
	})

	updated, _ := s.registry.GetByAddress(sub.WalletAddress)
	writeJSON(w, map[string]interface{}{
		"status":         "accepted",
		"validatorId":    updated.ID,
		"walletAddress":  updated.Address,
		"emotionalScore": updated.EmotionalScore,
		"authenticity":   updated.Authenticity,
		"eligible":       updated.Eligible(),
	})
}

// admitTransfer runs the ledger cover check, the replay check, and mempool
// admission shared by every transfer submission path.
func (s *Server) admitTransfer(tx *block.Transaction) error {
	if tx.Type != block.TxTransfer {
		return fmt.Errorf("only %s transactions may be submitted", block.TxTransfer)
	}
	if !s.ledger.CanCover(tx.From, tx.Amount, tx.Fee) {
		return fmt.Errorf("%w: %s needs %d", errInsufficientCover, tx.From, tx.Amount+tx.Fee)
	}
	if height, seen, err := s.store.TxSeenAt(tx.ID()); err != nil {
		return fmt.Errorf("transaction index lookup: %w", err)
	} else if seen {
		return fmt.Errorf("%w: mined at height %d", errAlreadyMined, height)
	}
	return s.pool.AddTx(tx)
}

// Handler for submitting signed transfers
func (s *Server) SubmitTransferHandler(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}
	var tx block.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.admitTransfer(&tx); err != nil {
		if errors.Is(err, mempool.ErrDuplicateTx) || errors.Is(err, errAlreadyMined) {
			http.Error(w, "Duplicate transaction", http.StatusConflict)
			return
		}
		http.Error(w, "Transfer rejected: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"txId":    tx.ID(),
		"status":  "pending",
		"message": "Transfer added to mempool",
	})
}

// Handler to list all expired transactions
func (s *Server) ListExpiredTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	writeJSON(w, s.pool.ExpiredPool.ListExpiredTxs())
}

// Handler to resubmit an expired transaction
func (s *Server) ResubmitTransactionHandler(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w, r) {
		return
	}
	var req struct {
		TxID string `json:"txId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TxID == "" {
		http.Error(w, "Missing or invalid txId", http.StatusBadRequest)
		return
	}
	rec, ok := s.pool.ExpiredPool.GetExpiredTx(req.TxID)
	if !ok {
		http.Error(w, "Transaction not found in expired pool", http.StatusNotFound)
		return
	}
	if rec.Tx == nil {
		http.Error(w, "Expired record has no transaction payload", http.StatusInternalServerError)
		return
	}
	// The wallet signature covers the original timestamp, so the node
	// cannot refresh it. Old transactions need a fresh signature.
	if time.Since(rec.Tx.Timestamp) > resubmitWindow {
		s.pool.ExpiredPool.RecordFailure(req.TxID, "too old to resubmit")
		http.Error(w, "Transaction too old to resubmit; re-sign and submit a new transfer", http.StatusGone)
		return
	}
	if err := s.admitTransfer(rec.Tx); err != nil {
		s.pool.ExpiredPool.RecordFailure(req.TxID, err.Error())
		if errors.Is(err, mempool.ErrDuplicateTx) {
			http.Error(w, "Duplicate transaction", http.StatusConflict)
			return
		}
		http.Error(w, "Resubmission rejected: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.pool.ExpiredPool.RecordResubmission(req.TxID, rec.Tx.ID())
	fmt.Printf("[AUDIT] Resubmitted expired TX: %s at %s\n", req.TxID, time.Now().Format(time.RFC3339))
	writeJSON(w, map[string]interface{}{
		"txId":    rec.Tx.ID(),
		"status":  "resubmitted",
		"message": "Transaction resubmitted to mempool",
	})
}

// RegisterSubmissionAPI registers the authenticated submission endpoints
// on the mux.
func RegisterSubmissionAPI(mux *http.ServeMux, s *Server) {
	mux.Handle("/api/v1/submit-reading", authMiddleware(http.HandlerFunc(s.SubmitReadingHandler)))
	mux.Handle("/api/v1/submit-transfer", authMiddleware(http.HandlerFunc(s.SubmitTransferHandler)))
	mux.Handle("/api/v1/expired-transactions", authMiddleware(http.HandlerFunc(s.ListExpiredTransactionsHandler)))
	mux.Handle("/api/v1/resubmit-transaction", authMiddleware(http.HandlerFunc(s.ResubmitTransactionHandler)))
}
