package auth

import (
	"fmt"
	"time"

	"emochain/core/audit"
	"emochain/core/wallet"
)

// Authorizer gates externally submitted work: the wallet signature proves
// account ownership, the device token proves the reading came from an
// attested capture device. Every decision is audited.
type Authorizer struct {
	WalletVerifier wallet.SignatureVerifier
	DeviceVerifier *DeviceVerifier
	AuditLogger    audit.Logger
}

type AuthorizationResult struct {
	Authorized bool
	Reason     string
}

func (a *Authorizer) auditLog() audit.Logger {
	if a.AuditLogger == nil {
		return audit.Nop{}
	}
	return a.AuditLogger
}

// AuthorizeSubmission checks the wallet signature over the payload, then
// the device attestation token.
func (a *Authorizer) AuthorizeSubmission(payload, signature, pubKey []byte, walletAddr, deviceToken string) AuthorizationResult {
	if !a.WalletVerifier.VerifySignature(payload, signature, pubKey, walletAddr) {
		a.auditLog().LogEvent(audit.Event{
			EventType: "SignatureVerification",
			EntityID:  walletAddr,
			Result:    "failure",
			Reason:    "invalid wallet signature",
			Timestamp: time.Now().UTC(),
		})
		return AuthorizationResult{false, "invalid wallet signature"}
	}
	claims, err := a.DeviceVerifier.VerifyDeviceToken(deviceToken)
	if err != nil {
		a.auditLog().LogEvent(audit.Event{
			EventType: "DeviceTokenVerification",
			EntityID:  walletAddr,
			Result:    "failure",
			Reason:    err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return AuthorizationResult{false, "invalid device token: " + err.Error()}
	}
	if !claims.HasRole(RoleReadingSubmitter) {
		a.auditLog().LogEvent(audit.Event{
			EventType: "DeviceTokenVerification",
			EntityID:  walletAddr,
			Result:    "failure",
			Reason:    "token lacks submitter role",
			Timestamp: time.Now().UTC(),
		})
		return AuthorizationResult{false, "device token lacks submitter role"}
	}
	a.auditLog().LogEvent(audit.Event{
		EventType: "Authorization",
		EntityID:  walletAddr,
		Result:    "success",
		Reason:    "authorized",
		Metadata: map[string]string{
			"device": claims.Subject,
			"roles":  fmt.Sprintf("%v", claims.Roles),
		},
		Timestamp: time.Now().UTC(),
	})
	return AuthorizationResult{true, "authorized"}
}
