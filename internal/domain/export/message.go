package export

import (
	"errors"
	"fmt"
)

// ErrMissingField is returned when a record lacks a field its kind requires.
var ErrMissingField = errors.New("missing required field")

// MessageRole is the sender vocabulary, including legacy synonyms.
type MessageRole string

const (
	RoleHuman     MessageRole = "human"
	RoleAssistant MessageRole = "assistant"
	RoleUser      MessageRole = "user"
	RolePrompt    MessageRole = "prompt"
	RoleResponse  MessageRole = "response"
)

// Known reports whether r is part of the role vocabulary.
func (r MessageRole) Known() bool {
	switch r {
	case RoleHuman, RoleAssistant, RoleUser, RolePrompt, RoleResponse:
		return true
	}
	return false
}

// Canonical folds legacy synonyms onto human and assistant. Unknown roles are returned as-is.
func (r MessageRole) Canonical() MessageRole {
	switch r {
	case RoleUser, RolePrompt:
		return RoleHuman
	case RoleResponse:
		return RoleAssistant
	}
	return r
}

// ContentBlockType tags a content block. The set is open; see Known.
type ContentBlockType string

const (
	ContentTypeText       ContentBlockType = "text"
	ContentTypeThinking   ContentBlockType = "thinking"
	ContentTypeParagraph  ContentBlockType = "p"
	ContentTypeCode       ContentBlockType = "pre"
	ContentTypeImage      ContentBlockType = "image"
	ContentTypeDocument   ContentBlockType = "document"
	ContentTypeArtifact   ContentBlockType = "artifact"
	ContentTypeList       ContentBlockType = "ul"
	ContentTypeListItem   ContentBlockType = "li"
	ContentTypeHeading    ContentBlockType = "h1"
	ContentTypeHeading2   ContentBlockType = "h2"
	ContentTypeHeading3   ContentBlockType = "h3"
	ContentTypeBlockquote ContentBlockType = "blockquote"
	ContentTypeTable      ContentBlockType = "table"

	// ContentTypeOther is reported by Kind for tags outside the vocabulary.
	ContentTypeOther ContentBlockType = "other"
)

// Known reports whether t is one of the recognized tags.
func (t ContentBlockType) Known() bool {
	switch t {
	case ContentTypeText, ContentTypeThinking, ContentTypeParagraph, ContentTypeCode,
		ContentTypeImage, ContentTypeDocument, ContentTypeArtifact, ContentTypeList,
		ContentTypeListItem, ContentTypeHeading, ContentTypeHeading2, ContentTypeHeading3,
		ContentTypeBlockquote, ContentTypeTable:
		return true
	}
	return false
}

// Kind returns t when known and ContentTypeOther otherwise. The raw tag stays on the block.
func (t ContentBlockType) Kind() ContentBlockType {
	if t.Known() {
		return t
	}
	return ContentTypeOther
}

// ContentBlock is one structured element of an assistant message.
type ContentBlock struct {
	Type           ContentBlockType `json:"type"`
	Text           *string          `json:"text,omitempty"`
	Thinking       *string          `json:"thinking,omitempty"`
	Data           *string          `json:"data,omitempty"`
	Citations      []Record         `json:"citations,omitempty"`
	Summaries      []Record         `json:"summaries,omitempty"`
	StartTimestamp *string          `json:"start_timestamp,omitempty"`
	StopTimestamp  *string          `json:"stop_timestamp,omitempty"`
	CutOff         *bool            `json:"cut_off,omitempty"`
	Language       *string          `json:"language,omitempty"`
	Source         Record           `json:"source,omitempty"`
	Title          *string          `json:"title,omitempty"`
	ID             *string          `json:"id,omitempty"`
	MimeType       *string          `json:"mime_type,omitempty"`

	Extra map[string]any `json:"-"`
}

// NormalizeContentBlock requires a string type tag; every other field is optional.
func NormalizeContentBlock(rec Record) (*ContentBlock, error) {
	f := newFields(rec)
	tag := f.str("type")
	if tag == nil {
		return nil, fmt.Errorf("content block: %w: type", ErrMissingField)
	}
	return &ContentBlock{
		Type:           ContentBlockType(*tag),
		Text:           f.str("text"),
		Thinking:       f.str("thinking"),
		Data:           f.str("data"),
		Citations:      f.records("citations"),
		Summaries:      f.records("summaries"),
		StartTimestamp: f.str("start_timestamp"),
		StopTimestamp:  f.str("stop_timestamp"),
		CutOff:         f.boolean("cut_off"),
		Language:       f.str("language"),
		Source:         f.object("source"),
		Title:          f.str("title"),
		ID:             f.str("id"),
		MimeType:       f.str("mime_type"),
		Extra:          f.extra(),
	}, nil
}

// Body returns the block's readable content: text for TEXT, thinking for THINKING, data then text otherwise.
func (b *ContentBlock) Body() string {
	switch b.Type {
	case ContentTypeText:
		return deref(b.Text)
	case ContentTypeThinking:
		return deref(b.Thinking)
	}
	if b.Data != nil {
		return *b.Data
	}
	return deref(b.Text)
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	type alias ContentBlock
	return marshalWithExtra(alias(b), b.Extra)
}

// Attachment is a file a user attached to a message.
type Attachment struct {
	FileName         *string `json:"file_name,omitempty"`
	FileType         *string `json:"file_type,omitempty"`
	FileSize         *int64  `json:"file_size,omitempty"`
	ExtractedContent *string `json:"extracted_content,omitempty"`
	FileID           *string `json:"file_id,omitempty"`
	MediaType        *string `json:"media_type,omitempty"`
	Size             *int64  `json:"size,omitempty"`
	ExtractedText    *string `json:"extracted_text,omitempty"`

	Extra map[string]any `json:"-"`
}

func NormalizeAttachment(rec Record) (*Attachment, error) {
	f := newFields(rec)
	return &Attachment{
		FileName:         f.str("file_name"),
		FileType:         f.str("file_type"),
		FileSize:         f.integer("file_size"),
		ExtractedContent: f.str("extracted_content"),
		FileID:           f.str("file_id"),
		MediaType:        f.str("media_type"),
		Size:             f.integer("size"),
		ExtractedText:    f.str("extracted_text"),
		Extra:            f.extra(),
	}, nil
}

// EffectiveSize returns file_size, else size.
func (a *Attachment) EffectiveSize() (int64, bool) {
	if a.FileSize != nil {
		return *a.FileSize, true
	}
	if a.Size != nil {
		return *a.Size, true
	}
	return 0, false
}

// Content returns extracted_content, else extracted_text. Binary files yield "".
func (a *Attachment) Content() string {
	return first(a.ExtractedContent, a.ExtractedText)
}

// Type returns file_type, else media_type.
func (a *Attachment) Type() string {
	return first(a.FileType, a.MediaType)
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	type alias Attachment
	return marshalWithExtra(alias(a), a.Extra)
}

// Message is one turn of a conversation.
type Message struct {
	UUID        *string        `json:"uuid,omitempty"`
	Sender      *string        `json:"sender,omitempty"`
	Text        *string        `json:"text,omitempty"`
	Content     []ContentBlock `json:"content,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Files       []Record       `json:"files,omitempty"`
	CreatedAt   *string        `json:"created_at,omitempty"`
	UpdatedAt   *string        `json:"updated_at,omitempty"`
	Index       *int64         `json:"index,omitempty"`
	Type        *string        `json:"type,omitempty"`
	Role        *MessageRole   `json:"role,omitempty"`
	Message     []ContentBlock `json:"message,omitempty"`
	Timestamp   *string        `json:"timestamp,omitempty"`

	Extra map[string]any `json:"-"`
}

func NormalizeMessage(rec Record) (*Message, error) {
	f := newFields(rec)
	msg := &Message{
		UUID:      f.str("uuid"),
		Sender:    f.str("sender"),
		Text:      f.str("text"),
		Files:     f.records("files"),
		CreatedAt: f.str("created_at"),
		UpdatedAt: f.str("updated_at"),
		Index:     f.integer("index"),
		Type:      f.str("type"),
		Timestamp: f.str("timestamp"),
	}
	if role := f.str("role"); role != nil {
		r := MessageRole(*role)
		msg.Role = &r
	}

	var err error
	if msg.Content, err = normalizeBlocks(f.records("content")); err != nil {
		return nil, fmt.Errorf("message content: %w", err)
	}
	if msg.Message, err = normalizeBlocks(f.records("message")); err != nil {
		return nil, fmt.Errorf("message blocks: %w", err)
	}
	for _, raw := range f.records("attachments") {
		att, err := NormalizeAttachment(raw)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, *att)
	}
	msg.Extra = f.extra()
	return msg, nil
}

func normalizeBlocks(raw []Record) ([]ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]ContentBlock, 0, len(raw))
	for i, rec := range raw {
		block, err := NormalizeContentBlock(rec)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, *block)
	}
	return out, nil
}

// SenderRole returns sender, else role. Empty when neither is set.
func (m *Message) SenderRole() MessageRole {
	if m.Sender != nil && *m.Sender != "" {
		return MessageRole(*m.Sender)
	}
	if m.Role != nil {
		return *m.Role
	}
	return ""
}

// AllContent returns content, else the legacy message block list.
func (m *Message) AllContent() []ContentBlock {
	if len(m.Content) > 0 {
		return m.Content
	}
	return m.Message
}

// When returns created_at, else timestamp.
func (m *Message) When() string {
	return first(m.CreatedAt, m.Timestamp)
}

func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return marshalWithExtra(alias(m), m.Extra)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func first(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}
