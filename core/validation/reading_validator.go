package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaPathEnvVar overrides the on-disk schema location, for deployments
// that do not run from the repository root.
const SchemaPathEnvVar = "EMOCHAIN_SCHEMA_PATH"

var walletAddressPattern = regexp.MustCompile(`^emo1[0-9a-f]{40}$`)

func getSchemaPath(schemaVersion string) string {
	if env := os.Getenv(SchemaPathEnvVar); env != "" {
		return env
	}
	switch schemaVersion {
	case "1.0", "1":
		return filepath.Join("core", "validation", "schemas", "biometric_reading_v1.json")
	default:
		return filepath.Join("core", "validation", "schemas", "biometric_reading_v1.json")
	}
}

// ValidateReadingPayload validates a raw reading submission against the
// JSON schema and additional plausibility logic. It rejects before any
// biometric data reaches the validator registry.
func ValidateReadingPayload(payload []byte) error {
	var rec map[string]interface{}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	schemaVersion, _ := rec["schemaVersion"].(string)
	schemaPath, err := filepath.Abs(getSchemaPath(schemaVersion))
	if err != nil {
		return fmt.Errorf("resolve schema path: %w", err)
	}
	schemaLoader := gojsonschema.NewReferenceLoader("file://" + schemaPath)

	documentLoader := gojsonschema.NewBytesLoader(payload)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errStr := ""
		for _, e := range result.Errors() {
			errStr += e.String() + "; "
		}
		return fmt.Errorf("payload failed schema validation: %s", errStr)
	}

	// Explicit address check on top of the schema pattern.
	if addr, ok := rec["walletAddress"].(string); ok {
		if !walletAddressPattern.MatchString(addr) {
			AuditValidationError("address_check", "walletAddress does not match address pattern")
			return fmt.Errorf("walletAddress does not match address pattern")
		}
	}
	if deviceID, ok := rec["deviceId"].(string); ok && utf8.RuneCountInString(deviceID) > 64 {
		AuditValidationError("length_check", "deviceId exceeds 64 characters")
		return fmt.Errorf("deviceId exceeds 64 characters")
	}

	// Physiological plausibility on top of the schema ranges.
	if reading, ok := rec["reading"].(map[string]interface{}); ok {
		if err := checkReadingRanges(reading); err != nil {
			return err
		}
	}

	capturedAt, _ := rec["capturedAt"].(string)
	if err := EnforceTimestampFormat(capturedAt); err != nil {
		return err
	}

	return nil
}

func checkReadingRanges(reading map[string]interface{}) error {
	bounds := []struct {
		field    string
		min, max float64
		minExcl  bool
	}{
		{"heartRate", 0, 300, true},
		{"stressLevel", 0, 100, false},
		{"focusLevel", 0, 100, false},
		{"authenticity", 0, 1, false},
	}
	for _, b := range bounds {
		val, ok := reading[b.field].(float64)
		if !ok {
			continue
		}
		if val > b.max || val < b.min || (b.minExcl && val == b.min) {
			AuditValidationError("range_check", fmt.Sprintf("%s out of plausible range", b.field))
			return fmt.Errorf("%s out of plausible range", b.field)
		}
	}
	return nil
}

// ValidateReadingMap validates an already-decoded reading submission.
func ValidateReadingMap(record map[string]interface{}) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal record to JSON: %w", err)
	}
	return ValidateReadingPayload(payload)
}

// IsSupportedSchemaVersion reports whether the node understands the given
// submission schema version.
func IsSupportedSchemaVersion(version string) bool {
	switch version {
	case "1", "1.0":
		return true
	default:
		return false
	}
}

// EnforceTimestampFormat checks that capturedAt is RFC3339.
func EnforceTimestampFormat(capturedAt string) error {
	if capturedAt == "" {
		return fmt.Errorf("capturedAt is empty")
	}
	if _, err := time.Parse(time.RFC3339, capturedAt); err != nil {
		return fmt.Errorf("capturedAt must be RFC3339: %w", err)
	}
	return nil
}
