package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"emochain/core"
	"emochain/core/auth"
	"emochain/core/biometric"
	"emochain/core/block"
	"emochain/core/chain"
	"emochain/core/mempool"
	"emochain/core/state"
	"emochain/core/storage"
	"emochain/core/validation"
	"emochain/core/validator"
	"emochain/core/wallet"
	"emochain/types/ids"
)

const testChainID = "emochain-test"

func TestMain(m *testing.M) {
	validation.AuditLogPath = filepath.Join(os.TempDir(), "emochain_api_test_audit.log")
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	t.Setenv(storage.DEKEnvVar, base64.StdEncoding.EncodeToString(key))
	store, err := storage.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type apiFixture struct {
	srv       *Server
	mux       *http.ServeMux
	store     *storage.Storage
	alice     *core.KeyPair
	proposer  *validator.Validator
	deviceKey *rsa.PrivateKey
}

// newAPIFixture wires a full node behind an in-memory mux: one funded
// wallet that doubles as the registered validator, a mined genesis, and a
// device attestation issuer under kid "dev-1".
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := openTestStore(t)

	alice, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	genesis := block.NewBlock(0, []*block.Transaction{{
		Type:      block.TxMiningReward,
		From:      block.NetworkAddress,
		To:        alice.Address(),
		Amount:    1000,
		Nonce:     "genesis:" + alice.Address(),
		Breakdown: &block.RewardBreakdown{Base: 1000},
	}}, ids.Empty, nil, 0, 1)
	if err := genesis.Mine(); err != nil {
		t.Fatalf("mine genesis: %v", err)
	}
	if err := store.SaveBlock(genesis); err != nil {
		t.Fatalf("save genesis: %v", err)
	}

	ledger := state.NewLedger(store, nil)
	ch, err := chain.NewChain(store, ledger)
	if err != nil {
		t.Fatalf("open chain: %v", err)
	}

	reading := biometric.NewReading(70, 20, 88, 1.0)
	proposer := validator.NewValidator("val-1", alice.Address(), 1000, &reading)
	registry := validator.NewRegistry()
	if err := registry.Register(proposer); err != nil {
		t.Fatalf("register: %v", err)
	}

	deviceKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa key: %v", err)
	}
	authorizer := &auth.Authorizer{
		WalletVerifier: &wallet.KeyBoundVerifier{},
		DeviceVerifier: &auth.DeviceVerifier{
			KeyProvider: &auth.StaticKeyProvider{Keys: map[string]*rsa.PublicKey{
				"dev-1": &deviceKey.PublicKey,
			}},
			ChainID: testChainID,
		},
	}

	srv := &Server{
		store:      store,
		chain:      ch,
		pool:       mempool.NewMempool(64),
		registry:   registry,
		ledger:     ledger,
		authorizer: authorizer,
		limiter:    newClientLimiter(100000, store),
		Feed:       NewBlockFeed(),
		ListenAddr: ":0",
	}
	mux := http.NewServeMux()
	srv.routes(mux)

	return &apiFixture{
		srv:       srv,
		mux:       mux,
		store:     store,
		alice:     alice,
		proposer:  proposer,
		deviceKey: deviceKey,
	}
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func (f *apiFixture) signedTransfer(t *testing.T, amount, fee int64) *block.Transaction {
	t.Helper()
	tx := block.NewTransfer(f.alice.Address(), "emo1bob", amount, fee, nil)
	if err := tx.Sign(f.alice); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}

// appendBlocks mines and appends n empty blocks proposed by the fixture
// validator.
func (f *apiFixture) appendBlocks(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		b := block.NewBlock(f.srv.chain.Height()+1, nil, f.srv.chain.Tip().Hash, f.proposer, 80, 1)
		if err := b.Mine(); err != nil {
			t.Fatalf("mine: %v", err)
		}
		if err := f.srv.chain.AppendBlock(b, f.proposer); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func (f *apiFixture) deviceToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	claims := auth.DeviceClaims{
		ChainID: testChainID,
		Roles:   []string{"reading-submitter"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "wearable-007",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "dev-1"
	signed, err := token.SignedString(f.deviceKey)
	if err != nil {
		t.Fatalf("sign device token: %v", err)
	}
	return signed
}

func readingRecord(addr string) map[string]interface{} {
	return map[string]interface{}{
		"walletAddress": addr,
		"deviceId":      "wearable-007",
		"schemaVersion": "1.0",
		"capturedAt":    time.Now().UTC().Format(time.RFC3339),
		"reading": map[string]interface{}{
			"heartRate":    float64(70),
			"stressLevel":  float64(20),
			"focusLevel":   float64(88),
			"authenticity": 0.96,
		},
	}
}

// readingEnvelope signs the record with the given wallet and wraps it for
// submission. The signature covers the canonical JSON of the record.
func readingEnvelope(t *testing.T, signer *core.KeyPair, claimedAddr string, record map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	env := map[string]interface{}{
		"record":        record,
		"walletAddress": claimedAddr,
		"publicKey":     hex.EncodeToString(signer.PublicKey()),
		"signature":     base64.StdEncoding.EncodeToString(signer.Sign(payload)),
	}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func useAPIKey(t *testing.T, req *http.Request) {
	t.Helper()
	req.Header.Set("X-API-Key", "test-api-key")
}

func setupSubmissionEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_KEY", "test-api-key")
	t.Setenv(validation.SchemaPathEnvVar,
		filepath.Join("..", "..", "core", "validation", "schemas", "biometric_reading_v1.json"))
}

func TestChainHeightEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/chain_height", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]uint64
	decodeJSON(t, rr, &resp)
	if resp["chainHeight"] != 0 {
		t.Fatalf("expected genesis-only height 0, got %d", resp["chainHeight"])
	}
}

func TestGetBlockByID(t *testing.T) {
	f := newAPIFixture(t)
	genesis, err := f.srv.chain.Genesis()
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/get_block/"+genesis.Hash.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var got block.Block
	decodeJSON(t, rr, &got)
	if got.Index != 0 || got.Hash != genesis.Hash {
		t.Fatalf("wrong block returned: index %d", got.Index)
	}

	if rr := f.do(httptest.NewRequest(http.MethodGet, "/get_block/zz", nil)); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed ID, got %d", rr.Code)
	}
	unknown := ids.NewID([]byte("missing"))
	if rr := f.do(httptest.NewRequest(http.MethodGet, "/get_block/"+unknown.String(), nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown ID, got %d", rr.Code)
	}
}

func TestGetBlockByHeight(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/get_block_by_height?height=0", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var got block.Block
	decodeJSON(t, rr, &got)
	if got.Index != 0 {
		t.Fatalf("expected genesis, got index %d", got.Index)
	}

	if rr := f.do(httptest.NewRequest(http.MethodGet, "/get_block_by_height?height=99", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 past tip, got %d", rr.Code)
	}
	if rr := f.do(httptest.NewRequest(http.MethodGet, "/get_block_by_height?height=abc", nil)); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for junk height, got %d", rr.Code)
	}
}

func TestGetChainTip(t *testing.T) {
	f := newAPIFixture(t)
	f.srv.ConfirmDepth = 1
	f.appendBlocks(t, 2)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/get_chain_tip", nil))
	var resp struct {
		LatestBlockID   string `json:"latestBlockID"`
		Height          uint64 `json:"height"`
		FinalizedHeight uint64 `json:"finalizedHeight"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Height != 2 {
		t.Fatalf("expected tip height 2, got %d", resp.Height)
	}
	if resp.LatestBlockID != f.srv.chain.Tip().Hash.String() {
		t.Fatal("tip ID does not match chain tip")
	}
	if resp.FinalizedHeight != 1 {
		t.Fatalf("expected finalized height 1 at depth 1, got %d", resp.FinalizedHeight)
	}
}

func TestFinalizedHeightFloorsAtZero(t *testing.T) {
	f := newAPIFixture(t)
	f.appendBlocks(t, 2)
	// Default depth exceeds the chain height, nothing is final yet.
	if got := f.srv.FinalizedHeight(); got != 0 {
		t.Fatalf("expected finalized height 0 on a short chain, got %d", got)
	}
}

func TestListBlocks(t *testing.T) {
	f := newAPIFixture(t)
	f.appendBlocks(t, 3)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/list_blocks", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var summaries []storage.BlockSummary
	decodeJSON(t, rr, &summaries)
	if len(summaries) != 4 {
		t.Fatalf("expected 4 summaries, got %d", len(summaries))
	}
}

func TestBlocksQueryPagination(t *testing.T) {
	f := newAPIFixture(t)
	f.appendBlocks(t, 3)

	fetch := func(query string) []block.Block {
		rr := f.do(httptest.NewRequest(http.MethodGet, "/blocks"+query, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("query %q: status %d: %s", query, rr.Code, rr.Body.String())
		}
		var blocks []block.Block
		decodeJSON(t, rr, &blocks)
		return blocks
	}

	if got := fetch(""); len(got) != 4 {
		t.Fatalf("unfiltered query expected 4 blocks, got %d", len(got))
	}
	if got := fetch("?start=1&limit=2"); len(got) != 2 || got[0].Index != 1 || got[1].Index != 2 {
		t.Fatalf("windowed query wrong: %+v", got)
	}
	if got := fetch("?start=1&offset=1&limit=2"); len(got) != 2 || got[0].Index != 2 {
		t.Fatalf("offset query wrong: %+v", got)
	}
	// Genesis has no proposer, so the validator filter excludes it.
	if got := fetch("?validator=" + f.alice.Address()); len(got) != 3 {
		t.Fatalf("validator filter expected 3 blocks, got %d", len(got))
	}
	if got := fetch("?start=9"); len(got) != 0 {
		t.Fatalf("past-tip query expected empty, got %d", len(got))
	}
	if rr := f.do(httptest.NewRequest(http.MethodGet, "/blocks?end=not-a-number", nil)); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for junk end, got %d", rr.Code)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/balance?address="+f.alice.Address(), nil))
	var resp struct {
		Address string `json:"address"`
		Balance int64  `json:"balance"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Balance != 1000 {
		t.Fatalf("expected genesis allocation 1000, got %d", resp.Balance)
	}
	if rr := f.do(httptest.NewRequest(http.MethodGet, "/balance", nil)); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without address, got %d", rr.Code)
	}
}

func TestValidatorsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(httptest.NewRequest(http.MethodGet, "/validators", nil))
	var resp struct {
		Validators []struct {
			ID             string  `json:"id"`
			EmotionalScore float64 `json:"emotionalScore"`
			Eligible       bool    `json:"eligible"`
		} `json:"validators"`
		ConsensusScore float64 `json:"consensusScore"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Validators) != 1 {
		t.Fatalf("expected 1 validator, got %d", len(resp.Validators))
	}
	if !resp.Validators[0].Eligible {
		t.Fatal("seeded validator should be eligible")
	}
	if resp.ConsensusScore <= 0 {
		t.Fatalf("expected positive consensus score, got %v", resp.ConsensusScore)
	}
}

func TestSubmitTransferRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)
	body, _ := json.Marshal(f.signedTransfer(t, 10, 1))
	rr := f.do(httptest.NewRequest(http.MethodPost, "/api/v1/submit-transfer", bytes.NewReader(body)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rr.Code)
	}
}

func TestSubmitTransfer(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)
	tx := f.signedTransfer(t, 10, 1)
	body, _ := json.Marshal(tx)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-transfer", bytes.NewReader(body))
	useAPIKey(t, req)
	rr := f.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		TxID   string `json:"txId"`
		Status string `json:"status"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "pending" || resp.TxID != tx.ID() {
		t.Fatalf("unexpected receipt: %+v", resp)
	}
	if f.srv.pool.Len() != 1 {
		t.Fatalf("expected 1 pending tx, got %d", f.srv.pool.Len())
	}

	// Same transaction again is a duplicate.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/submit-transfer", bytes.NewReader(body))
	useAPIKey(t, req)
	if rr := f.do(req); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rr.Code)
	}
}

func TestSubmitTransferRejectsAlreadyMined(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)
	tx := f.signedTransfer(t, 10, 1)

	// Mine the transfer into a block, then try to submit it again.
	reward, err := block.BuildMiningReward(f.proposer.Address, 80, tx.Fee)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	b := block.NewBlock(1, []*block.Transaction{tx, reward}, f.srv.chain.Tip().Hash, f.proposer, 80, 1)
	if err := b.Mine(); err != nil {
		t.Fatalf("mine: %v", err)
	}
	if err := f.srv.chain.AppendBlock(b, f.proposer); err != nil {
		t.Fatalf("append: %v", err)
	}

	body, _ := json.Marshal(tx)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-transfer", bytes.NewReader(body))
	useAPIKey(t, req)
	if rr := f.do(req); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for mined transfer, got %d: %s", rr.Code, rr.Body.String())
	}
	if f.srv.pool.Len() != 0 {
		t.Fatalf("mined transfer must not re-enter the pool, have %d", f.srv.pool.Len())
	}
}

func TestSubmitTransferRejectsOverdraft(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)
	body, _ := json.Marshal(f.signedTransfer(t, 5000, 0))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-transfer", bytes.NewReader(body))
	useAPIKey(t, req)
	rr := f.do(req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overdraft, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "cannot cover") {
		t.Fatalf("expected cover error, got %s", rr.Body.String())
	}
}

func TestSubmitTransferRejectsUnsigned(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)
	body, _ := json.Marshal(block.NewTransfer(f.alice.Address(), "emo1bob", 10, 0, nil))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-transfer", bytes.NewReader(body))
	useAPIKey(t, req)
	if rr := f.do(req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned transfer, got %d", rr.Code)
	}
}

func TestSubmitReading(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	body := readingEnvelope(t, f.alice, f.alice.Address(), readingRecord(f.alice.Address()))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-reading", bytes.NewReader(body))
	useAPIKey(t, req)
	req.Header.Set("X-Device-Token", f.deviceToken(t, time.Hour))

	rr := f.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Status         string  `json:"status"`
		ValidatorID    string  `json:"validatorId"`
		EmotionalScore float64 `json:"emotionalScore"`
		Eligible       bool    `json:"eligible"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "accepted" || resp.ValidatorID != "val-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	// 70 bpm / 20 stress / 88 focus / 0.96 authenticity scores 91.
	if math.Abs(resp.EmotionalScore-91) > 1e-9 {
		t.Fatalf("expected score 91, got %v", resp.EmotionalScore)
	}
	if !resp.Eligible {
		t.Fatal("validator should be eligible after a healthy reading")
	}
}

func TestSubmitReadingRejectsForeignSignature(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	mallory, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	// Mallory signs a record claiming alice's wallet.
	body := readingEnvelope(t, mallory, f.alice.Address(), readingRecord(f.alice.Address()))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-reading", bytes.NewReader(body))
	useAPIKey(t, req)
	req.Header.Set("X-Device-Token", f.deviceToken(t, time.Hour))

	rr := f.do(req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitReadingRequiresDeviceToken(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	body := readingEnvelope(t, f.alice, f.alice.Address(), readingRecord(f.alice.Address()))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-reading", bytes.NewReader(body))
	useAPIKey(t, req)
	rr := f.do(req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without device token, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "X-Device-Token") {
		t.Fatalf("expected device token hint, got %s", rr.Body.String())
	}
}

func TestSubmitReadingRejectsExpiredDeviceToken(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	body := readingEnvelope(t, f.alice, f.alice.Address(), readingRecord(f.alice.Address()))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-reading", bytes.NewReader(body))
	useAPIKey(t, req)
	req.Header.Set("X-Device-Token", f.deviceToken(t, -time.Minute))
	if rr := f.do(req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rr.Code)
	}
}

func TestSubmitReadingUnknownWallet(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	bob, err := core.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	body := readingEnvelope(t, bob, bob.Address(), readingRecord(bob.Address()))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-reading", bytes.NewReader(body))
	useAPIKey(t, req)
	req.Header.Set("X-Device-Token", f.deviceToken(t, time.Hour))
	if rr := f.do(req); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered wallet, got %d", rr.Code)
	}
}

func TestSubmitReadingRejectsSchemaViolations(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	record := readingRecord(f.alice.Address())
	record["reading"].(map[string]interface{})["heartRate"] = float64(999)
	body := readingEnvelope(t, f.alice, f.alice.Address(), record)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-reading", bytes.NewReader(body))
	useAPIKey(t, req)
	req.Header.Set("X-Device-Token", f.deviceToken(t, time.Hour))
	if rr := f.do(req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for implausible heart rate, got %d", rr.Code)
	}
}

func TestExpiredListAndResubmit(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	tx := f.signedTransfer(t, 25, 1)
	if err := f.srv.pool.AddTx(tx); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	if purged := f.srv.pool.PurgeExpired(0); purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/expired-transactions", nil)
	useAPIKey(t, req)
	rr := f.do(req)
	var expired []mempool.ExpiredTx
	decodeJSON(t, rr, &expired)
	if len(expired) != 1 || expired[0].TxID != tx.ID() {
		t.Fatalf("expected the purged tx in expired list, got %+v", expired)
	}

	body, _ := json.Marshal(map[string]string{"txId": tx.ID()})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/resubmit-transaction", bytes.NewReader(body))
	useAPIKey(t, req)
	rr = f.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("resubmit status %d: %s", rr.Code, rr.Body.String())
	}
	if f.srv.pool.Len() != 1 {
		t.Fatalf("expected tx back in pool, len %d", f.srv.pool.Len())
	}
	rec, ok := f.srv.pool.ExpiredPool.GetExpiredTx(tx.ID())
	if !ok || rec.ResubmitCount != 1 {
		t.Fatalf("expected resubmission lineage recorded, got %+v", rec)
	}
}

func TestResubmitRejectsStaleTransaction(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)

	tx := block.NewTransfer(f.alice.Address(), "emo1bob", 25, 1, nil)
	tx.Timestamp = time.Now().Add(-2 * time.Hour)
	if err := tx.Sign(f.alice); err != nil {
		t.Fatalf("sign: %v", err)
	}
	f.srv.pool.ExpiredPool.AddExpiredTx(mempool.ExpiredTx{
		TxID:      tx.ID(),
		Tx:        tx,
		ExpiredAt: time.Now().Add(-time.Hour),
		Reason:    "timeout",
	})

	body, _ := json.Marshal(map[string]string{"txId": tx.ID()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resubmit-transaction", bytes.NewReader(body))
	useAPIKey(t, req)
	rr := f.do(req)
	if rr.Code != http.StatusGone {
		t.Fatalf("expected 410 for stale tx, got %d: %s", rr.Code, rr.Body.String())
	}
	rec, _ := f.srv.pool.ExpiredPool.GetExpiredTx(tx.ID())
	if rec.LastError == "" {
		t.Fatal("expected failure recorded on expired record")
	}
}

func TestResubmitUnknownTx(t *testing.T) {
	f := newAPIFixture(t)
	setupSubmissionEnv(t)
	body, _ := json.Marshal(map[string]string{"txId": "deadbeef"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resubmit-transaction", bytes.NewReader(body))
	useAPIKey(t, req)
	if rr := f.do(req); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tx, got %d", rr.Code)
	}
}

func TestCLISubmitTransferAlwaysJSON(t *testing.T) {
	f := newAPIFixture(t)
	tx := f.signedTransfer(t, 10, 1)
	body, _ := json.Marshal(tx)

	rr := f.do(httptest.NewRequest(http.MethodPost, "/api/cli/submit-transfer", bytes.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["txId"] != tx.ID() {
		t.Fatalf("unexpected receipt: %+v", resp)
	}

	// Errors are JSON too, never plain text.
	rr = f.do(httptest.NewRequest(http.MethodGet, "/api/cli/submit-transfer", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	var errResp map[string]string
	decodeJSON(t, rr, &errResp)
	if errResp["error"] == "" {
		t.Fatal("expected JSON error body")
	}
}

func TestMempoolEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	tx := f.signedTransfer(t, 10, 1)
	if err := f.srv.pool.AddTx(tx); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	rr := f.do(httptest.NewRequest(http.MethodGet, "/mempool", nil))
	var pending []block.Transaction
	decodeJSON(t, rr, &pending)
	if len(pending) != 1 || pending[0].Nonce != tx.Nonce {
		t.Fatalf("expected seeded tx in mempool view, got %d", len(pending))
	}
}

func TestHealthAndStatusEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
	var live LivenessResponse
	decodeJSON(t, rr, &live)
	if !live.Alive {
		t.Fatal("node should report alive")
	}

	rr = f.do(httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	var ready ReadinessResponse
	decodeJSON(t, rr, &ready)
	if !ready.Ready {
		t.Fatal("node with a readable tip should be ready")
	}

	rr = f.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	var status StatusResponse
	decodeJSON(t, rr, &status)
	if status.Status != "healthy" {
		t.Fatalf("expected healthy fresh chain, got %q", status.Status)
	}
	if status.Version != NodeVersion() || status.APIVersion != APIVersion() {
		t.Fatalf("version fields wrong: %+v", status)
	}

	rr = f.do(httptest.NewRequest(http.MethodGet, "/nodehealth", nil))
	var health NodeHealthResponse
	decodeJSON(t, rr, &health)
	if health.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", health.Status)
	}
	if health.Metrics.EligibleCount != 1 {
		t.Fatalf("expected 1 eligible validator in metrics, got %d", health.Metrics.EligibleCount)
	}
}

func TestDevInspectTx(t *testing.T) {
	f := newAPIFixture(t)

	pending := f.signedTransfer(t, 10, 1)
	if err := f.srv.pool.AddTx(pending); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	rr := f.do(httptest.NewRequest(http.MethodGet, "/dev/inspect_tx?txId="+pending.ID(), nil))
	var resp struct {
		Location string `json:"location"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Location != "mempool" {
		t.Fatalf("expected mempool hit, got %q", resp.Location)
	}

	// Mine the pending tx into a block and inspect again.
	reward, err := block.BuildMiningReward(f.alice.Address(), 80, pending.Fee)
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	b := block.NewBlock(1, []*block.Transaction{pending, reward}, f.srv.chain.Tip().Hash, f.proposer, 80, 1)
	if err := b.Mine(); err != nil {
		t.Fatalf("mine: %v", err)
	}
	if err := f.srv.chain.AppendBlock(b, f.proposer); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.srv.pool.RemoveIncluded(b.Transactions)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/dev/inspect_tx?txId="+pending.ID(), nil))
	var chainResp struct {
		Location string `json:"location"`
		Height   uint64 `json:"height"`
	}
	decodeJSON(t, rr, &chainResp)
	if chainResp.Location != "chain" || chainResp.Height != 1 {
		t.Fatalf("expected chain hit at height 1, got %+v", chainResp)
	}

	if rr := f.do(httptest.NewRequest(http.MethodGet, "/dev/inspect_tx?txId=feedface", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tx, got %d", rr.Code)
	}
	if rr := f.do(httptest.NewRequest(http.MethodGet, "/dev/inspect_tx", nil)); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without txId, got %d", rr.Code)
	}
}

func TestGuardBansFloodingClient(t *testing.T) {
	f := newAPIFixture(t)
	f.srv.limiter = newClientLimiter(2, f.store)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/chain_height", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		codes = append(codes, f.do(req).Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusForbidden}
	if fmt.Sprint(codes) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
}
