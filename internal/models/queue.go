package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreamspy/mnemo/pkg/mnemo/types"
)

// OperationKind determines which replay protocol a queued item uses.
type OperationKind string

const (
	OperationEvent     OperationKind = "event"
	OperationDiary     OperationKind = "diary"
	OperationDiaryBulk OperationKind = "diary_bulk"
)

// QueueStatus is the per-item drain state. Syncing is transient: it is
// only ever observed while an attempt is in flight, and the store
// coerces any persisted syncing row back to pending on load.
type QueueStatus string

const (
	StatusPending QueueStatus = "pending"
	StatusSyncing QueueStatus = "syncing"
	StatusFailed  QueueStatus = "failed"
)

// QueueItem is a deferred operation waiting for replay against the API.
// An item exists exactly as long as the server has not accepted it.
type QueueItem struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Kind      OperationKind   `json:"kind"`
	Status    QueueStatus     `json:"status"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Eligible reports whether the item should be attempted on the next
// drain pass.
func (q *QueueItem) Eligible() bool {
	return q.Status == StatusPending || q.Status == StatusFailed
}

// EventPayload decodes the payload of an event item.
func (q *QueueItem) EventPayload() (*types.Event, error) {
	var ev types.Event
	if err := json.Unmarshal(q.Payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event payload: %w", err)
	}
	return &ev, nil
}

// DiaryPayload is a complete diary entry ready to save.
type DiaryPayload struct {
	Date    string                 `json:"date"`
	Answers map[string]interface{} `json:"answers"`
}

// DecodeDiaryPayload decodes the payload of a diary item.
func (q *QueueItem) DecodeDiaryPayload() (*DiaryPayload, error) {
	var p DiaryPayload
	if err := json.Unmarshal(q.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode diary payload: %w", err)
	}
	return &p, nil
}

// DiaryBulkPayload is the two-phase diary payload: scale answers chosen
// on the device plus raw free text that still needs server-side parsing.
// The text stays raw in the queue; parsing happens exactly once, during
// replay. The question list is snapshotted so replay is self-contained.
type DiaryBulkPayload struct {
	Date         string           `json:"date"`
	ScaleAnswers map[string]int   `json:"scale_answers"`
	RawText      string           `json:"raw_text"`
	Questions    []types.Question `json:"questions"`
}

// DecodeDiaryBulkPayload decodes the payload of a diary_bulk item.
func (q *QueueItem) DecodeDiaryBulkPayload() (*DiaryBulkPayload, error) {
	var p DiaryBulkPayload
	if err := json.Unmarshal(q.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode diary_bulk payload: %w", err)
	}
	return &p, nil
}

// Label renders a short human description for the queue view.
func (q *QueueItem) Label() string {
	switch q.Kind {
	case OperationEvent:
		if ev, err := q.EventPayload(); err == nil {
			return fmt.Sprintf("Event: %s", ev.Type)
		}
		return "Event"
	case OperationDiary:
		if p, err := q.DecodeDiaryPayload(); err == nil {
			return fmt.Sprintf("Diary %s", p.Date)
		}
		return "Diary"
	case OperationDiaryBulk:
		if p, err := q.DecodeDiaryBulkPayload(); err == nil {
			return fmt.Sprintf("Diary %s (text pending parse)", p.Date)
		}
		return "Diary (text pending parse)"
	default:
		return string(q.Kind)
	}
}
