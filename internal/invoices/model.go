package invoices

import "time"

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusValidated  Status = "validated"
	StatusFailed     Status = "failed"
)

// predecessors lists the states each status may be entered from. Statuses
// never move backwards.
var predecessors = map[Status][]Status{
	StatusProcessing: {StatusUploaded},
	StatusCompleted:  {StatusProcessing},
	StatusValidated:  {StatusCompleted},
	StatusFailed:     {StatusUploaded, StatusProcessing},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusValidated, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}

// stampsProcessedAt reports whether entering s records processed_at.
func stampsProcessedAt(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// Invoice is an uploaded PDF and its lifecycle state.
type Invoice struct {
	ID          string
	UserID      string
	FileName    string
	StorageKey  string
	SizeBytes   int64
	MimeType    string
	PageCount   int
	Status      Status
	UploadedAt  time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status Status
	UserID string
	Limit  int
	Offset int
}

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Stats aggregates invoices by status.
type Stats struct {
	Total      int            `json:"total"`
	TotalBytes int64          `json:"totalBytes"`
	ByStatus   map[Status]int `json:"byStatus"`
}
