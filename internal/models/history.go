// internal/models/history.go
package models

import "time"

// HistoryStatus is the aggregate outcome of one dispatch run.
type HistoryStatus string

const (
	HistorySuccess HistoryStatus = "success"
	HistoryPartial HistoryStatus = "partial"
	HistoryFailed  HistoryStatus = "failed"
	// HistoryPending marks a record created at dispatch start that has not
	// been finalized yet. A pending record with an expired claim is retried.
	HistoryPending HistoryStatus = "pending"
)

// BroadcastHistory is the immutable record of one completed dispatch attempt.
// MessageTitle is a snapshot taken at dispatch time. The record is write-once
// after CompletedAt is set.
type BroadcastHistory struct {
	ID            string        `json:"id"`
	MessageID     string        `json:"messageId"`
	MessageTitle  string        `json:"messageTitle"`
	Recipients    []string      `json:"recipients"`
	Status        HistoryStatus `json:"status"`
	DeliveryCount int           `json:"deliveryCount"`
	TotalCount    int           `json:"totalCount"`
	CreatedAt     time.Time     `json:"createdAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`

	Version int64 `json:"-"`
}

// OutcomeStatus derives the aggregate status from delivery counts.
// Zero resolved recipients is a vacuous success.
func OutcomeStatus(deliveryCount, totalCount int) HistoryStatus {
	switch {
	case deliveryCount == totalCount:
		return HistorySuccess
	case deliveryCount > 0:
		return HistoryPartial
	default:
		return HistoryFailed
	}
}

// DeliveryRate computes the percentage of delivered recipients, defined as
// 100 when totalCount is zero.
func DeliveryRate(deliveryCount, totalCount int) float64 {
	if totalCount == 0 {
		return 100
	}
	return 100 * float64(deliveryCount) / float64(totalCount)
}
