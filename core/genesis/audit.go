package genesis

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// AuditLogPath is where ceremony audit events are appended, one JSON
// object per line. Tests point it at a scratch file.
var AuditLogPath = "genesis_audit.log"

// AuditEvent is one ceremony audit record.
type AuditEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"eventType"`
	Details   json.RawMessage `json:"details"`
}

// AppendAuditEvent appends an audit event to the ceremony log.
func AppendAuditEvent(event AuditEvent) error {
	f, err := os.OpenFile(AuditLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// ComputeAuditLogRoot hashes every log line and folds the hashes into a
// single Merkle-style root, so the ceremony transcript can be fingerprinted
// and compared across participants.
func ComputeAuditLogRoot() (string, error) {
	f, err := os.Open(AuditLogPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var hashes [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		sum := sha256.Sum256(scanner.Bytes())
		hashes = append(hashes, sum[:])
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "", nil
	}
	return fmt.Sprintf("%x", foldHashes(hashes)), nil
}

// foldHashes pairs and re-hashes until one root remains; an odd tail is
// promoted unchanged.
func foldHashes(hashes [][]byte) []byte {
	if len(hashes) == 1 {
		return hashes[0]
	}
	var next [][]byte
	for i := 0; i < len(hashes); i += 2 {
		if i+1 < len(hashes) {
			combined := append(append([]byte{}, hashes[i]...), hashes[i+1]...)
			sum := sha256.Sum256(combined)
			next = append(next, sum[:])
		} else {
			next = append(next, hashes[i])
		}
	}
	return foldHashes(next)
}

// mustMarshalJSON marshals v or panics; audit detail payloads are built
// from plain maps and cannot fail outside programmer error.
func mustMarshalJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mustMarshalJSON failed: %v", err))
	}
	return b
}
