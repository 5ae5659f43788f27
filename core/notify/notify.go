package notify

import (
	"log"
)

// NotificationType is the audience of a notification.
type NotificationType string

const (
	NotifyAdmin NotificationType = "admin"
	NotifyUser  NotificationType = "user"
)

// Notification describes an event worth surfacing outside the node, such
// as a transaction aging out of the mempool.
type Notification struct {
	TxID      string
	Reason    string
	Attempt   int
	Type      NotificationType
	Recipient string
}

// Notify delivers a notification. The log sink is the only channel wired
// in; operators tail it or ship it to their alerting stack.
func Notify(n Notification) {
	log.Printf("[NOTIFY] To: %s | Type: %s | TxID: %s | Attempt: %d | Reason: %s",
		n.Recipient, n.Type, n.TxID, n.Attempt, n.Reason)
}

// NotifyExpiredTx reports a transaction the expiry sweep removed from the
// mempool, addressed to the node operator.
func NotifyExpiredTx(txID, reason string, attempt int) {
	Notify(Notification{
		TxID:      txID,
		Reason:    reason,
		Attempt:   attempt,
		Type:      NotifyAdmin,
		Recipient: "operator",
	})
}
