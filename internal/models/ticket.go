package models

import "time"

// DispatchMode selects how a record is handed to the search engine.
type DispatchMode string

const (
	DispatchSync  DispatchMode = "sync"
	DispatchAsync DispatchMode = "async"
)

// TicketStatus is the lifecycle state of a dispatch ticket.
type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketRunning   TicketStatus = "running"
	TicketRetrying  TicketStatus = "retrying"
	TicketSucceeded TicketStatus = "succeeded"
	TicketFailed    TicketStatus = "failed"
)

// Terminal reports whether no further attempts will be made.
func (s TicketStatus) Terminal() bool {
	return s == TicketSucceeded || s == TicketFailed
}

// DispatchTicket tracks the indexing of one document. Callers may poll it;
// in async mode it is the only place a worker failure becomes visible besides the logs.
type DispatchTicket struct {
	ID         string       `json:"id" db:"id"`
	DocumentID string       `json:"document_id" db:"document_id"`
	IndexName  string       `json:"index_name" db:"index_name"`
	Mode       DispatchMode `json:"mode" db:"mode"`
	Status     TicketStatus `json:"status" db:"status"`
	Attempts   int          `json:"attempts" db:"attempts"`
	LastError  string       `json:"last_error,omitempty" db:"last_error"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}
