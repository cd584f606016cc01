// Package queue defines message payloads exchanged over the message broker.
package queue

// MemberDeletedEvent is published when an account is soft-deleted, so
// downstream consumers (analytics, mailing lists) can react without querying
// the primary database.
type MemberDeletedEvent struct {
	MemberID  uint64 `json:"member_id"`
	Email     string `json:"email"`
	DeletedAt string `json:"deleted_at"`
}
