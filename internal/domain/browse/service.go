package browse

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"jan-server/services/archive-api/internal/domain/export"
	"jan-server/services/archive-api/internal/utils/platformerrors"
)

const (
	textContentType   = "text/plain; charset=utf-8"
	binaryContentType = "application/octet-stream"
	scanBatch         = 500
)

// Service renders read views over imported data.
type Service struct {
	reader Reader
	log    zerolog.Logger
}

func NewService(reader Reader, log zerolog.Logger) *Service {
	return &Service{
		reader: reader,
		log:    log.With().Str("component", "browse-service").Logger(),
	}
}

// Conversation returns the stored conversation document.
func (s *Service) Conversation(ctx context.Context, uuid string) (export.Record, error) {
	rec, err := s.reader.FindOneByKey(ctx, export.CollectionConversations, uuid)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "find conversation")
	}
	if rec == nil {
		return nil, notFound(ctx, "conversation not found", "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a01")
	}
	return rec, nil
}

// ExportConversation renders the conversation as an indented JSON download.
func (s *Service) ExportConversation(ctx context.Context, uuid string) (*File, error) {
	rec, err := s.Conversation(ctx, uuid)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"encode conversation", err, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a02")
	}
	return &File{
		Filename:    fmt.Sprintf("conversation_%s.json", uuid),
		ContentType: "application/json",
		Body:        body,
	}, nil
}

// ExportMessages renders the selected messages as JSON or CSV. Out-of-range indices are ignored.
func (s *Service) ExportMessages(ctx context.Context, uuid string, indices []int, format string) (*File, error) {
	rec, err := s.Conversation(ctx, uuid)
	if err != nil {
		return nil, err
	}
	raw := rawMessages(rec)
	name := rec.String("name", "title")

	selected := make([]export.Record, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(raw) {
			continue
		}
		msg := raw[idx].Clone()
		msg["conversation_uuid"] = uuid
		msg["conversation_name"] = name
		selected = append(selected, msg)
	}

	switch strings.ToLower(format) {
	case FormatCSV:
		body, err := messagesCSV(selected)
		if err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
				"encode messages csv", err, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a03")
		}
		return &File{Filename: fmt.Sprintf("messages_%s.csv", uuid), ContentType: "text/csv", Body: body}, nil
	case "", FormatJSON:
		body, err := json.MarshalIndent(selected, "", "  ")
		if err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
				"encode messages", err, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a04")
		}
		return &File{Filename: fmt.Sprintf("messages_%s.json", uuid), ContentType: "application/json", Body: body}, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		fmt.Sprintf("unsupported export format %q", format), nil, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a05")
}

// messagesCSV writes one row per message with the union of keys as sorted columns.
func messagesCSV(messages []export.Record) ([]byte, error) {
	colSet := make(map[string]struct{})
	for _, msg := range messages {
		for k := range msg {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(cols) > 0 {
		if err := w.Write(cols); err != nil {
			return nil, err
		}
	}
	for _, msg := range messages {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = cell(msg[col])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool, int, int32, int64, float64:
		return fmt.Sprint(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Attachment returns a preview of attachment ai on message mi.
func (s *Service) Attachment(ctx context.Context, uuid string, mi, ai int) (*AttachmentView, error) {
	att, err := s.attachment(ctx, uuid, mi, ai)
	if err != nil {
		return nil, err
	}
	size, _ := att.EffectiveSize()
	fileType := att.Type()
	return &AttachmentView{
		Filename:         attachmentName(att, ai),
		ContentType:      contentTypeFor(fileType),
		Size:             size,
		Data:             att.Content(),
		FileType:         fileType,
		IsUserAttachment: true,
		DownloadURL:      fmt.Sprintf("/v1/conversations/%s/messages/%d/attachments/%d/download", uuid, mi, ai),
	}, nil
}

// AttachmentFile renders attachment ai on message mi as a download.
func (s *Service) AttachmentFile(ctx context.Context, uuid string, mi, ai int) (*File, error) {
	att, err := s.attachment(ctx, uuid, mi, ai)
	if err != nil {
		return nil, err
	}
	fileType := att.Type()
	if fileType == "" {
		fileType = "txt"
	}
	name := attachmentName(att, ai)
	if !strings.Contains(name, ".") {
		name = name + "." + fileType
	}
	return &File{
		Filename:    name,
		ContentType: contentTypeFor(fileType),
		Body:        []byte(att.Content()),
	}, nil
}

func (s *Service) attachment(ctx context.Context, uuid string, mi, ai int) (*export.Attachment, error) {
	msg, err := s.message(ctx, uuid, mi)
	if err != nil {
		return nil, err
	}
	if ai < 0 || ai >= len(msg.Attachments) {
		return nil, notFound(ctx, "attachment not found", "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a06")
	}
	return &msg.Attachments[ai], nil
}

// Artifact returns content block ci of assistant message mi.
func (s *Service) Artifact(ctx context.Context, uuid string, mi, ci int) (*ArtifactView, error) {
	msg, err := s.message(ctx, uuid, mi)
	if err != nil {
		return nil, err
	}
	if msg.SenderRole().Canonical() != export.RoleAssistant {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"only assistant messages contain artifacts", nil, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a07")
	}
	blocks := msg.AllContent()
	if ci < 0 || ci >= len(blocks) {
		return nil, notFound(ctx, "content block not found", "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a08")
	}
	block := blocks[ci]

	prefix := "assistant_artifact"
	switch block.Type {
	case export.ContentTypeText:
		prefix = "assistant_response"
	case export.ContentTypeThinking:
		prefix = "assistant_thinking"
	}
	data := block.Body()
	return &ArtifactView{
		Filename:            fmt.Sprintf("%s_%d.txt", prefix, ci),
		ContentType:         textContentType,
		Size:                len(data),
		Data:                data,
		ArtifactType:        string(block.Type),
		IsAssistantArtifact: true,
		Summaries:           nonNil(block.Summaries),
		Citations:           nonNil(block.Citations),
		StartTimestamp:      block.StartTimestamp,
		StopTimestamp:       block.StopTimestamp,
	}, nil
}

func (s *Service) message(ctx context.Context, uuid string, mi int) (*export.Message, error) {
	rec, err := s.Conversation(ctx, uuid)
	if err != nil {
		return nil, err
	}
	conv, err := export.NormalizeConversation(rec)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"conversation document is malformed", err, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a09")
	}
	messages := conv.AllMessages()
	if mi < 0 || mi >= len(messages) {
		return nil, notFound(ctx, "message not found", "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a10")
	}
	return &messages[mi], nil
}

// Project returns the stored project with document and template counts.
func (s *Service) Project(ctx context.Context, uuid string) (export.Record, error) {
	rec, err := s.reader.FindOneByKey(ctx, export.CollectionProjects, uuid)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "find project")
	}
	if rec == nil {
		return nil, notFound(ctx, "project not found", "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a11")
	}
	withProjectCounts(rec)
	return rec, nil
}

// Recent lists a collection newest first. page and perPage are clamped to valid ranges.
func (s *Service) Recent(ctx context.Context, collection string, page, perPage int) (*Page, error) {
	opts := ListOptions{SortField: "created_at", Descending: true}
	switch collection {
	case export.CollectionConversations:
		opts.Exclude = []string{"chat_messages"}
	case export.CollectionImportHistory:
		opts.SortField = "timestamp"
	case export.CollectionProjects, export.CollectionUsers:
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid collection", nil, "c41e8a57-0d2b-4f6a-9e13-7b5d2c8f4a12")
	}

	page = max(1, page)
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	perPage = min(MaxPerPage, max(MinPerPage, perPage))

	total, err := s.reader.Count(ctx, collection)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "count "+collection)
	}
	opts.Skip = (page - 1) * perPage
	opts.Limit = perPage
	items, err := s.reader.List(ctx, collection, opts)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list "+collection)
	}
	if collection == export.CollectionProjects {
		for _, item := range items {
			withProjectCounts(item)
		}
	}
	if items == nil {
		items = []export.Record{}
	}

	totalPages := (total + int64(perPage) - 1) / int64(perPage)
	return &Page{
		Items: items,
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

// Accounts lists the distinct account labels seen on conversations.
func (s *Service) Accounts(ctx context.Context) ([]string, error) {
	accounts, err := s.reader.Distinct(ctx, export.CollectionConversations, export.FieldAccountName)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list accounts")
	}
	sort.Strings(accounts)
	return accounts, nil
}

// Stats counts every collection, spans the conversation dates and tallies messages by canonical sender role.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{MessagesBySender: map[string]int{}}
	counters := []struct {
		collection string
		dst        *int64
	}{
		{export.CollectionConversations, &stats.TotalConversations},
		{export.CollectionUsers, &stats.TotalUsers},
		{export.CollectionProjects, &stats.TotalProjects},
		{export.CollectionImportHistory, &stats.TotalImports},
	}
	for _, c := range counters {
		n, err := s.reader.Count(ctx, c.collection)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "count "+c.collection)
		}
		*c.dst = n
	}

	accounts, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	stats.Accounts = accounts

	err = s.scanConversations(ctx, func(rec export.Record, conv *export.Conversation) {
		stats.DateRange.observe(rec.String("created_at"), rec.String("updated_at"))
		for role, n := range conv.SenderCounts() {
			stats.MessagesBySender[string(role)] += n
		}
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// scanConversations walks every stored conversation in uuid order. Documents that
// fail normalization are logged and skipped.
func (s *Service) scanConversations(ctx context.Context, fn func(export.Record, *export.Conversation)) error {
	for skip := 0; ; skip += scanBatch {
		batch, err := s.reader.List(ctx, export.CollectionConversations, ListOptions{SortField: export.FieldUUID, Skip: skip, Limit: scanBatch})
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "scan conversations")
		}
		for _, rec := range batch {
			conv, err := export.NormalizeConversation(rec)
			if err != nil {
				s.log.Debug().Err(err).Str("uuid", rec.String(export.FieldUUID)).Msg("skipping malformed conversation")
				continue
			}
			fn(rec, conv)
		}
		if len(batch) < scanBatch {
			return nil
		}
	}
}

func rawMessages(rec export.Record) []export.Record {
	return rec.Records("chat_messages", "messages", "chats")
}

func withProjectCounts(rec export.Record) {
	project, _ := export.NormalizeProject(rec)
	rec["docs_count"] = project.DocsCount()
	rec["templates_count"] = project.TemplatesCount()
}

func attachmentName(att *export.Attachment, index int) string {
	if att.FileName != nil && *att.FileName != "" {
		return *att.FileName
	}
	return fmt.Sprintf("attachment_%d", index)
}

func contentTypeFor(fileType string) string {
	if fileType == "txt" {
		return textContentType
	}
	return binaryContentType
}

func nonNil(list []export.Record) []export.Record {
	if list == nil {
		return []export.Record{}
	}
	return list
}

func notFound(ctx context.Context, msg, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, msg, nil, code)
}
