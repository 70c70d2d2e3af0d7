package browse

import "jan-server/services/archive-api/internal/domain/export"

const (
	MinPerPage     = 5
	MaxPerPage     = 50
	DefaultPerPage = 10
)

// Export formats for selected messages.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Pagination describes a page of a recent listing.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalCount int64 `json:"total_count"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// Page is one page of recent items.
type Page struct {
	Items      []export.Record `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// AttachmentView describes an attachment for preview.
type AttachmentView struct {
	Filename         string `json:"filename"`
	ContentType      string `json:"content_type"`
	Size             int64  `json:"size"`
	Data             string `json:"data"`
	FileType         string `json:"file_type,omitempty"`
	IsUserAttachment bool   `json:"is_user_attachment"`
	DownloadURL      string `json:"download_url"`
}

// ArtifactView describes a content block of an assistant message.
type ArtifactView struct {
	Filename            string          `json:"filename"`
	ContentType         string          `json:"content_type"`
	Size                int             `json:"size"`
	Data                string          `json:"data"`
	ArtifactType        string          `json:"artifact_type"`
	IsAssistantArtifact bool            `json:"is_assistant_artifact"`
	Summaries           []export.Record `json:"summaries"`
	Citations           []export.Record `json:"citations"`
	StartTimestamp      *string         `json:"start_timestamp"`
	StopTimestamp       *string         `json:"stop_timestamp"`
}

// File is a rendered download.
type File struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Stats summarizes the store.
type Stats struct {
	TotalConversations int64          `json:"total_conversations"`
	TotalUsers         int64          `json:"total_users"`
	TotalProjects      int64          `json:"total_projects"`
	TotalImports       int64          `json:"total_imports"`
	Accounts           []string       `json:"accounts"`
	DateRange          DateRange      `json:"date_range"`
	MessagesBySender   map[string]int `json:"messages_by_sender"`
}

// DateRange spans the earliest conversation created_at and the latest updated_at.
// Both stay empty when no conversation carries the field.
type DateRange struct {
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

func (r *DateRange) observe(createdAt, updatedAt string) {
	if createdAt != "" && (r.Earliest == "" || createdAt < r.Earliest) {
		r.Earliest = createdAt
	}
	if updatedAt != "" && updatedAt > r.Latest {
		r.Latest = updatedAt
	}
}
