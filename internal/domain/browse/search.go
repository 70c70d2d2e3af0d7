package browse

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

const (
	MinSearchPerPage     = 10
	MaxSearchPerPage     = 100
	DefaultSearchPerPage = 20
)

// Sort keys accepted by Search.
const (
	SortCreatedAt       = "created_at"
	SortUpdatedAt       = "updated_at"
	SortName            = "name"
	SortMessageCount    = "message_count"
	SortAttachmentCount = "attachment_count"
	SortArtifactCount   = "artifact_count"
)

// SearchFilters narrows a conversation search. Zero values match everything.
type SearchFilters struct {
	Account        string `json:"account"`
	DateFrom       string `json:"date_from"`
	HasAttachments bool   `json:"has_attachments"`
}

// SearchQuery is a conversation search. Query matches name or title case-insensitively.
type SearchQuery struct {
	Query     string
	Filters   SearchFilters
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
}

// ConversationSummary is a search hit without its messages.
type ConversationSummary struct {
	UUID                  string `json:"uuid"`
	Name                  string `json:"name"`
	CreatedAt             string `json:"created_at,omitempty"`
	UpdatedAt             string `json:"updated_at,omitempty"`
	AccountName           string `json:"_account_name,omitempty"`
	MessageCount          int    `json:"message_count"`
	AttachmentCount       int    `json:"attachment_count"`
	ArtifactCount         int    `json:"artifact_count"`
	UserMessageCount      int    `json:"user_message_count"`
	AssistantMessageCount int    `json:"assistant_message_count"`
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Conversations []ConversationSummary `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// Search filters conversations, sorts them by a stored or computed field and pages
// the result. Count sorts and name sorts break ties newest first.
func (s *Service) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	sortBy := q.SortBy
	switch sortBy {
	case "":
		sortBy = SortCreatedAt
	case SortCreatedAt, SortUpdatedAt, SortName, SortMessageCount, SortAttachmentCount, SortArtifactCount:
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"unsupported sort field "+sortBy, nil, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a10")
	}
	desc := !strings.EqualFold(q.SortOrder, "asc")

	page := max(1, q.Page)
	perPage := q.PerPage
	if perPage == 0 {
		perPage = DefaultSearchPerPage
	}
	perPage = min(MaxSearchPerPage, max(MinSearchPerPage, perPage))

	needle := strings.ToLower(strings.TrimSpace(q.Query))
	var hits []ConversationSummary
	err := s.scanConversations(ctx, func(rec export.Record, conv *export.Conversation) {
		if q.Filters.Account != "" && rec.String(export.FieldAccountName) != q.Filters.Account {
			return
		}
		created := rec.String("created_at")
		if q.Filters.DateFrom != "" && created < q.Filters.DateFrom {
			return
		}
		if needle != "" && !strings.Contains(strings.ToLower(conv.DisplayName()), needle) {
			return
		}
		attachments := conv.AttachmentCount()
		if q.Filters.HasAttachments && attachments == 0 {
			return
		}
		senders := conv.SenderCounts()
		hits = append(hits, ConversationSummary{
			UUID:                  rec.String(export.FieldUUID),
			Name:                  conv.DisplayName(),
			CreatedAt:             created,
			UpdatedAt:             rec.String("updated_at"),
			AccountName:           rec.String(export.FieldAccountName),
			MessageCount:          conv.MessageCount(),
			AttachmentCount:       attachments,
			ArtifactCount:         conv.ArtifactCount(),
			UserMessageCount:      senders[export.RoleHuman],
			AssistantMessageCount: senders[export.RoleAssistant],
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(hits, summaryOrder(sortBy, desc))

	total := int64(len(hits))
	totalPages := (total + int64(perPage) - 1) / int64(perPage)
	start := min(len(hits), (page-1)*perPage)
	end := min(len(hits), start+perPage)
	return &SearchResult{
		Conversations: append([]ConversationSummary{}, hits[start:end]...),
		Pagination: Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalCount: total,
			TotalPages: totalPages,
			HasPrev:    page > 1,
			HasNext:    int64(page) < totalPages,
		},
	}, nil
}

func summaryOrder(sortBy string, desc bool) func(a, b ConversationSummary) int {
	dir := func(c int) int {
		if desc {
			return -c
		}
		return c
	}
	newestFirst := func(a, b ConversationSummary) int { return cmp.Compare(b.CreatedAt, a.CreatedAt) }

	return func(a, b ConversationSummary) int {
		var c int
		switch sortBy {
		case SortUpdatedAt:
			return dir(cmp.Compare(a.UpdatedAt, b.UpdatedAt))
		case SortCreatedAt:
			return dir(cmp.Compare(a.CreatedAt, b.CreatedAt))
		case SortName:
			c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortMessageCount:
			c = cmp.Compare(a.MessageCount, b.MessageCount)
		case SortAttachmentCount:
			c = cmp.Compare(a.AttachmentCount, b.AttachmentCount)
		case SortArtifactCount:
			c = cmp.Compare(a.ArtifactCount, b.ArtifactCount)
		}
		if c != 0 {
			return dir(c)
		}
		return newestFirst(a, b)
	}
}
