package main

import (
	"crypto/rsa"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	// Load env vars from .env for local/dev
	_ "github.com/joho/godotenv/autoload"

	"emochain/api/server"
	"emochain/core"
	"emochain/core/audit"
	"emochain/core/auth"
	"emochain/core/block"
	"emochain/core/chain"
	"emochain/core/genesis"
	"emochain/core/mempool"
	"emochain/core/notify"
	"emochain/core/scan"
	"emochain/core/state"
	"emochain/core/storage"
	"emochain/core/validator"
	"emochain/core/wallet"
)

// Default block production interval (3 seconds)
var blockProductionInterval = 3 * time.Second

func init() {
	if val := os.Getenv("BLOCK_TIME_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			blockProductionInterval = time.Duration(ms) * time.Millisecond
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Log to file as well as stdout
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}
	logFile, err := os.OpenFile("logs/emochain-node.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	fmt.Println("🚀 Starting EmoChain Node")

	// === Node Key Management ===
	nodeKey, err := core.GenerateAndSaveKeyPair()
	if err != nil {
		log.Fatalf("❌ Failed to load/generate node keypair: %v", err)
	}
	fmt.Printf("[KEY] Node address: %s\n", nodeKey.Address())

	// === Config ===
	dbPath := envOr("DB_PATH", "./emochain_db")
	apiListenAddr := ":" + envOr("SERVER_PORT", "8080")
	genesisPath := envOr("GENESIS_CONFIG", "genesis.json")

	// === Storage ===
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// === Startup integrity scan ===
	report, err := scan.ScanChain(store)
	if err != nil {
		log.Fatalf("❌ Startup chain scan failed: %v", err)
	}
	scan.PrintReport(report)
	if !report.Empty && !report.Intact {
		if os.Getenv("REPAIR_ON_START") == "1" {
			keep, err := scan.Repair(store, report)
			if err != nil {
				log.Fatalf("❌ Chain repair failed: %v", err)
			}
			fmt.Printf("[SCAN] Repaired chain, kept heights 0..%d\n", keep)
		} else {
			log.Fatalf("❌ Chain integrity check failed at height %d. Set REPAIR_ON_START=1 to truncate above the last intact block.", report.FirstBad)
		}
	}

	// === Genesis ===
	genesisCfg, err := genesis.LoadGenesisConfig(genesisPath)
	if err != nil {
		log.Fatalf("❌ Failed to load genesis config: %v", err)
	}
	genesisBlock, created, err := genesis.EnsureGenesis(store, genesisCfg)
	if err != nil {
		log.Fatalf("❌ Failed to ensure genesis block: %v", err)
	}
	if created {
		fmt.Println("🌟 Genesis block created and saved!")
	} else {
		fmt.Println("🌟 Genesis block already exists.")
	}
	fmt.Printf("🔗 Genesis block: %s (chain %s)\n", genesisBlock.Hash, genesisCfg.ChainID)

	// === Ledger and Chain ===
	auditLogger := audit.NewStdoutLogger()
	ledger := state.NewLedger(store, auditLogger)
	ch, err := chain.NewChain(store, ledger)
	if err != nil {
		log.Fatalf("❌ Failed to open chain: %v", err)
	}
	fmt.Printf("[CHAIN] Tip height %d, block %s\n", ch.Height(), ch.Tip().Hash)

	// === Validator registry ===
	registry := validator.NewRegistry()
	if err := genesis.SeedValidators(registry, genesisCfg); err != nil {
		log.Fatalf("❌ Failed to seed validators: %v", err)
	}
	fmt.Printf("[REGISTRY] %d validator(s) seeded, awaiting readings\n", registry.Len())

	// === Mempool wiring ===
	mempoolMax := genesisCfg.InitialParams.MempoolMax
	if mempoolMax == 0 {
		mempoolMax = 1000
	}
	mp := mempool.NewMempool(mempoolMax)

	// === Background expiry worker for archiving expired TXs ===
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		notified := make(map[string]bool)
		for range ticker.C {
			if purged := mp.PurgeExpired(15 * time.Minute); purged > 0 {
				log.Printf("[MEMPOOL] Archived %d expired transaction(s) to ExpiredTxPool", purged)
			}
			for _, rec := range mp.ExpiredPool.ListExpiredTxs() {
				if notified[rec.TxID] {
					continue
				}
				notified[rec.TxID] = true
				notify.NotifyExpiredTx(rec.TxID, rec.Reason, rec.ResubmitCount+1)
			}
		}
	}()

	// === Authorizer for reading submissions ===
	issuerKeyPath := envOr("DEVICE_ISSUER_PUBKEY_PATH", "device_issuer.pem")
	issuerKid := envOr("DEVICE_ISSUER_KID", "dev-1")
	issuerKey, err := auth.LoadRSAPublicKeyFromFile(issuerKeyPath)
	if err != nil {
		log.Fatalf("❌ Failed to load device issuer key (generate one with scripts/gen_device_jwt.go): %v", err)
	}
	authorizer := &auth.Authorizer{
		WalletVerifier: &wallet.KeyBoundVerifier{},
		DeviceVerifier: &auth.DeviceVerifier{
			KeyProvider: &auth.StaticKeyProvider{Keys: map[string]*rsa.PublicKey{issuerKid: issuerKey}},
			ChainID:     genesisCfg.ChainID,
		},
		AuditLogger: auditLogger,
	}

	// === API Server ===
	apiServer := server.NewServer(store, ch, mp, registry, ledger, authorizer, apiListenAddr)
	apiServer.ConfirmDepth = genesisCfg.InitialParams.ConfirmationDepth

	// === Block Producer Control ===
	if os.Getenv("BLOCK_PRODUCER") == "1" {
		difficulty := genesisCfg.Difficulty
		if difficulty == 0 {
			difficulty = genesis.DefaultDifficulty
		}
		maxTxs := genesisCfg.InitialParams.MaxBlockTxs
		if maxTxs == 0 {
			maxTxs = 100
		}
		go produceBlocks(ch, ledger, registry, mp, apiServer.Feed, auditLogger, difficulty, maxTxs)
	} else {
		fmt.Println("[INFO] Block production is disabled. This node serves reads and submissions only.")
	}

	if err := apiServer.Start(); err != nil {
		log.Fatalf("❌ API server stopped: %v", err)
	}
}

// produceBlocks runs the proposer loop: expire stale readings, elect by
// emotional weight, batch the mempool, mine, and append. A round with no
// eligible validator is skipped, never forced.
func produceBlocks(ch *chain.Chain, ledger *state.Ledger, registry *validator.Registry, mp *mempool.Mempool, feed *server.BlockFeed, auditLog audit.Logger, difficulty, maxTxs int) {
	fmt.Printf("[PRODUCER] Block production started (every %s, difficulty %d)\n", blockProductionInterval, difficulty)
	ticker := time.NewTicker(blockProductionInterval)
	defer ticker.Stop()
	for range ticker.C {
		if stale := registry.ExpireStaleReadings(time.Now()); stale > 0 {
			fmt.Printf("[REGISTRY] Expired %d stale reading(s)\n", stale)
		}

		height := ch.Height() + 1
		proposer, err := registry.SelectByEmotion(height)
		if err != nil {
			fmt.Printf("[PRODUCER] Skipping height %d: %v\n", height, err)
			continue
		}
		auditLog.LogEvent(audit.Event{
			EventType: "ProposerSelection",
			EntityID:  proposer.ID,
			Result:    "success",
			Reason:    fmt.Sprintf("elected for height %d with score %.1f", height, proposer.EmotionalScore),
			Timestamp: time.Now().UTC(),
		})

		txs := mp.BatchTxs(maxTxs)
		// A transfer the ledger would refuse poisons the whole block and
		// would be rebatched every tick; evict it instead of stalling.
		txs, unfunded := ledger.FilterCoverable(txs)
		for _, tx := range unfunded {
			mp.Evict(tx.ID(), "unfunded")
			fmt.Printf("[PRODUCER] Evicted unfunded tx %s from the pool\n", tx.ID())
		}
		consensusScore := registry.ConsensusScore()
		reward, err := block.BuildMiningReward(proposer.Address, consensusScore, block.SumFees(txs))
		if err != nil {
			fmt.Printf("[PRODUCER] Failed to build reward: %v\n", err)
			continue
		}
		blockTxs := append(append([]*block.Transaction{}, txs...), reward)

		b := block.NewBlock(height, blockTxs, ch.Tip().Hash, proposer, consensusScore, difficulty)
		start := time.Now()
		if err := b.Mine(); err != nil {
			fmt.Printf("[PRODUCER] Mining failed at height %d: %v\n", height, err)
			continue
		}
		if err := ch.AppendBlock(b, proposer); err != nil {
			fmt.Printf("[PRODUCER] Block %d rejected: %v\n", height, err)
			continue
		}
		mp.RemoveIncluded(txs)
		feed.Publish(b)
		fmt.Printf("✅ Block %d produced by %s (%d txs, nonce %d, %s)\n",
			b.Index, b.ValidatorAddress, len(b.Transactions), b.Nonce, time.Since(start).Round(time.Millisecond))
	}
}
