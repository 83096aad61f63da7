// Package models defines the data structures shared by the ingestion pipeline.
package models

import "time"

// BatchKind is the coarse state of a batch.
type BatchKind string

const (
	BatchProcessing BatchKind = "processing"
	BatchCompleted  BatchKind = "completed"
)

// BatchStatus is the polled progress of a batch. Message is last-write-wins.
type BatchStatus struct {
	Kind    BatchKind `json:"type" firestore:"type"`
	Message string    `json:"message" firestore:"message"`
}

// ItemRecord tracks one submitted file name or URL within a batch.
// ResolvedName stays empty until the item is placed, and forever if it failed.
type ItemRecord struct {
	OriginalName string `json:"old_name" firestore:"old_name"`
	ResolvedName string `json:"new_name" firestore:"new_name"`
}

// Batch is one ingestion request as persisted in the process store.
type Batch struct {
	ID         string       `json:"id" firestore:"id"`
	Owner      string       `json:"user_id" firestore:"user_id"`
	Items      []ItemRecord `json:"files" firestore:"files"`
	CreatedAt  time.Time    `json:"created_at" firestore:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" firestore:"updated_at"`
	FinishedAt *time.Time   `json:"finished_at" firestore:"finished_at"`
	Status     BatchStatus  `json:"status" firestore:"status"`
}

// NewBatch builds the initial record for a batch: processing, no resolved names.
func NewBatch(id, owner string, originalNames []string, now time.Time) Batch {
	items := make([]ItemRecord, len(originalNames))
	for i, name := range originalNames {
		items[i] = ItemRecord{OriginalName: name}
	}
	return Batch{
		ID:        id,
		Owner:     owner,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    BatchStatus{Kind: BatchProcessing},
	}
}

// Completed reports whether the batch reached its terminal state.
func (b Batch) Completed() bool {
	return b.Status.Kind == BatchCompleted
}

// Resolved counts items that were placed successfully.
func (b Batch) Resolved() int {
	n := 0
	for _, it := range b.Items {
		if it.ResolvedName != "" {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can't alias the item slice.
func (b Batch) Clone() Batch {
	out := b
	out.Items = append([]ItemRecord(nil), b.Items...)
	if b.FinishedAt != nil {
		t := *b.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
