// Package dispatch hands index records to the search engine, synchronously or through a
// background task queue, and tracks each hand-off with a ticket.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// ErrIndexingFailed wraps any failure to get a record into the engine.
var ErrIndexingFailed = errors.New("indexing failed")

// TypeIndexDocument is the task type name used on the background queue.
const TypeIndexDocument = "document:index"

// Task is one unit of background indexing work.
type Task struct {
	TicketID   string             `json:"ticket_id"`
	IndexName  string             `json:"index_name"`
	DocumentID string             `json:"document_id"`
	Record     models.IndexRecord `json:"record"`
}

// Marshal encodes the task payload.
func (t Task) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

// UnmarshalTask decodes a task payload and checks required fields.
func UnmarshalTask(payload []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if t.IndexName == "" || t.DocumentID == "" {
		return Task{}, fmt.Errorf("decode task: missing index name or document id")
	}
	return t, nil
}

func (t Task) ticket(status models.TicketStatus) *models.DispatchTicket {
	return &models.DispatchTicket{
		ID:         t.TicketID,
		DocumentID: t.DocumentID,
		IndexName:  t.IndexName,
		Mode:       models.DispatchAsync,
		Status:     status,
	}
}
