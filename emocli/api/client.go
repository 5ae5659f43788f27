package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// BaseURL returns the node API base URL. Override with NODE_URL for
// non-local nodes; the default matches a node started from example.env.
func BaseURL() string {
	if v := os.Getenv("NODE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

type Status struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Height  uint64 `json:"height"`
	Tip     string `json:"tip"`
	Mempool int    `json:"mempool"`
}

func (s Status) ToJSON() string {
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func GetStatus() (Status, error) {
	resp, err := httpClient.Get(BaseURL() + "/api/cli/status")
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Tx mirrors the transaction fields the node serializes for the mempool
// endpoints. Signature bytes are omitted from CLI output.
type Tx struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Fee       int64  `json:"fee"`
	Nonce     string `json:"nonce"`
	Timestamp string `json:"timestamp"`
}

func GetMempool() ([]Tx, error) {
	resp, err := httpClient.Get(BaseURL() + "/api/cli/mempool")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var txs []Tx
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// SubmitReceipt is the node's response to a transfer submission.
type SubmitReceipt struct {
	Result string `json:"result"`
	TxID   string `json:"txId"`
	Error  string `json:"error"`
}

// SubmitTransfer posts a pre-signed transfer (raw JSON, as produced by
// gentx) to the node. The node verifies the signature and funding before
// admitting it to the mempool.
func SubmitTransfer(rawTx []byte) (SubmitReceipt, error) {
	resp, err := httpClient.Post(BaseURL()+"/api/cli/submit-transfer", "application/json", bytes.NewReader(rawTx))
	if err != nil {
		return SubmitReceipt{}, err
	}
	defer resp.Body.Close()
	var receipt SubmitReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return SubmitReceipt{}, err
	}
	if receipt.Error != "" {
		return receipt, fmt.Errorf("node rejected transfer: %s", receipt.Error)
	}
	return receipt, nil
}

type Balance struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

func GetBalance(address string) (Balance, error) {
	resp, err := httpClient.Get(BaseURL() + "/balance?address=" + address)
	if err != nil {
		return Balance{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Balance{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	var bal Balance
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		return Balance{}, err
	}
	return bal, nil
}

// ValidatorInfo mirrors the registry view served by /validators.
type ValidatorInfo struct {
	ID             string  `json:"id"`
	Address        string  `json:"address"`
	EmotionalScore float64 `json:"emotionalScore"`
	Authenticity   float64 `json:"authenticity"`
	Stake          int64   `json:"stake"`
	Active         bool    `json:"active"`
	ReadingValid   bool    `json:"readingValid"`
	Eligible       bool    `json:"eligible"`
}

type ValidatorSet struct {
	Validators     []ValidatorInfo `json:"validators"`
	ConsensusScore float64         `json:"consensusScore"`
	ScoreSpread    float64         `json:"scoreSpread"`
}

func GetValidators() (ValidatorSet, error) {
	resp, err := httpClient.Get(BaseURL() + "/validators")
	if err != nil {
		return ValidatorSet{}, err
	}
	defer resp.Body.Close()
	var set ValidatorSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return ValidatorSet{}, err
	}
	return set, nil
}

// BlockView mirrors the block fields the CLI prints; the full block JSON
// is kept alongside for --output json.
type BlockView struct {
	Index            uint64  `json:"index"`
	Timestamp        string  `json:"timestamp"`
	ValidatorID      string  `json:"validatorId"`
	ValidatorAddress string  `json:"validatorAddress"`
	ConsensusScore   float64 `json:"consensusScore"`
	Hash             string  `json:"hash"`
	Transactions     []Tx    `json:"transactions"`
}

// GetBlocks queries the ranged /blocks endpoint. query is a raw
// URL-encoded parameter string ("start=0&limit=5"); empty means node
// defaults.
func GetBlocks(query string) ([]BlockView, []byte, error) {
	url := BaseURL() + "/blocks"
	if query != "" {
		url += "?" + query
	}
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	var blocks []BlockView
	if err := json.Unmarshal(body, &blocks); err != nil {
		return nil, nil, err
	}
	return blocks, body, nil
}
