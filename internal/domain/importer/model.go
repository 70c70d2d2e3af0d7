package importer

import (
	"io"
	"time"

	"jan-server/services/archive-api/internal/domain/export"
)

// DefaultAccount labels imports uploaded without an account name.
const DefaultAccount = "Unknown"

// Run outcome stored on the import record.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// State is a step of an import run.
type State string

const (
	StateReceived             State = "received"
	StateExtracting           State = "extracting"
	StateLoadingConversations State = "loading_conversations"
	StateLoadingUsers         State = "loading_users"
	StateLoadingProjects      State = "loading_projects"
	StateLoadingAll           State = "loading"
	StateRecordingHistory     State = "recording_history"
	StateCleanup              State = "cleanup"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

func loadingState(kind export.Kind) State {
	switch kind {
	case export.KindConversation:
		return StateLoadingConversations
	case export.KindUser:
		return StateLoadingUsers
	case export.KindProject:
		return StateLoadingProjects
	}
	return StateLoadingAll
}

// Counts tallies loader results for one entity kind.
type Counts struct {
	Loaded     int `json:"loaded" bson:"loaded"`
	Duplicates int `json:"duplicates" bson:"duplicates"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Loaded += other.Loaded
	c.Duplicates += other.Duplicates
}

// Total is loaded plus duplicates.
func (c Counts) Total() int {
	return c.Loaded + c.Duplicates
}

// RecordError describes a record skipped by the loader.
type RecordError struct {
	File   string `json:"file" bson:"file"`
	Index  int    `json:"index" bson:"index"`
	Reason string `json:"reason" bson:"reason"`
}

// ImportRecord is the immutable history entry written once per run.
type ImportRecord struct {
	ImportID      string        `json:"import_id" bson:"import_id"`
	AccountName   string        `json:"account_name" bson:"account_name"`
	Timestamp     time.Time     `json:"timestamp" bson:"timestamp"`
	FilesFound    int           `json:"files_found" bson:"files_found"`
	Conversations Counts        `json:"conversations" bson:"conversations"`
	Users         Counts        `json:"users" bson:"users"`
	Projects      Counts        `json:"projects" bson:"projects"`
	Status        string        `json:"status" bson:"status"`
	Error         string        `json:"error,omitempty" bson:"error,omitempty"`
	RecordErrors  []RecordError `json:"record_errors,omitempty" bson:"record_errors,omitempty"`
}

// CountsFor returns a pointer to the counter of kind, or nil for unknown kinds.
func (r *ImportRecord) CountsFor(kind export.Kind) *Counts {
	switch kind {
	case export.KindConversation:
		return &r.Conversations
	case export.KindUser:
		return &r.Users
	case export.KindProject:
		return &r.Projects
	}
	return nil
}

// ImportSummary is returned to callers of a successful run.
type ImportSummary struct {
	ImportRecord
	ArchiveKey string `json:"archive_key,omitempty"`
}

// LoadResult is the outcome of loading one payload.
type LoadResult struct {
	Counts
	Skipped []RecordError
}

// UploadRequest carries an uploaded archive into ImportUpload.
type UploadRequest struct {
	Filename string
	Account  string
	Size     int64
	Body     io.Reader
}
