package export

import "fmt"

// Account is the account reference embedded in a conversation.
type Account struct {
	UUID  *string        `json:"uuid,omitempty"`
	Extra map[string]any `json:"-"`
}

func NormalizeAccount(rec Record) (*Account, error) {
	f := newFields(rec)
	return &Account{UUID: f.str("uuid"), Extra: f.extra()}, nil
}

func (a Account) MarshalJSON() ([]byte, error) {
	type alias Account
	return marshalWithExtra(alias(a), a.Extra)
}

// Artifact is a generated document attached to a conversation.
type Artifact struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Title     *string `json:"title,omitempty"`
	Content   string  `json:"content"`
	Language  *string `json:"language,omitempty"`
	MimeType  *string `json:"mime_type,omitempty"`
	CreatedAt *string `json:"created_at,omitempty"`
	UpdatedAt *string `json:"updated_at,omitempty"`

	Extra map[string]any `json:"-"`
}

// NormalizeArtifact requires id, type and content.
func NormalizeArtifact(rec Record) (*Artifact, error) {
	f := newFields(rec)
	art := &Artifact{
		Title:     f.str("title"),
		Language:  f.str("language"),
		MimeType:  f.str("mime_type"),
		CreatedAt: f.str("created_at"),
		UpdatedAt: f.str("updated_at"),
	}
	required := []struct {
		key string
		dst *string
	}{{"id", &art.ID}, {"type", &art.Type}, {"content", &art.Content}}
	for _, r := range required {
		v := f.str(r.key)
		if v == nil {
			return nil, fmt.Errorf("artifact: %w: %s", ErrMissingField, r.key)
		}
		*r.dst = *v
	}
	art.Extra = f.extra()
	return art, nil
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	type alias Artifact
	return marshalWithExtra(alias(a), a.Extra)
}

// Conversation is a chat session. Messages may live under chat_messages, messages or chats.
type Conversation struct {
	UUID         *string    `json:"uuid,omitempty"`
	Name         *string    `json:"name,omitempty"`
	Account      *Account   `json:"account,omitempty"`
	ChatMessages []Message  `json:"chat_messages,omitempty"`
	CreatedAt    *string    `json:"created_at,omitempty"`
	UpdatedAt    *string    `json:"updated_at,omitempty"`
	ID           *string    `json:"id,omitempty"`
	Title        *string    `json:"title,omitempty"`
	Messages     []Message  `json:"messages,omitempty"`
	Chats        []Message  `json:"chats,omitempty"`
	Summary      *string    `json:"summary,omitempty"`
	Model        *string    `json:"model,omitempty"`
	Artifacts    []Artifact `json:"artifacts,omitempty"`
	ProjectID    *string    `json:"project_id,omitempty"`
	IsDeleted    *bool      `json:"is_deleted,omitempty"`
	Tags         []string   `json:"tags,omitempty"`

	ImportID    *string  `json:"_import_id,omitempty"`
	ImportIDs   []string `json:"_import_ids,omitempty"`
	AccountName *string  `json:"_account_name,omitempty"`
	ImportedAt  *string  `json:"_imported_at,omitempty"`

	Extra map[string]any `json:"-"`
}

// NormalizeConversation fails only when a nested content block or artifact misses a required field.
func NormalizeConversation(rec Record) (*Conversation, error) {
	f := newFields(rec)
	conv := &Conversation{
		UUID:        f.str("uuid"),
		Name:        f.str("name"),
		CreatedAt:   f.str("created_at"),
		UpdatedAt:   f.str("updated_at"),
		ID:          f.str("id"),
		Title:       f.str("title"),
		Summary:     f.str("summary"),
		Model:       f.str("model"),
		ProjectID:   f.str("project_id"),
		IsDeleted:   f.boolean("is_deleted"),
		Tags:        f.strs("tags"),
		ImportID:    f.str(FieldImportID),
		ImportIDs:   f.strs(FieldImportIDs),
		AccountName: f.str(FieldAccountName),
		ImportedAt:  f.str(FieldImportedAt),
	}
	if raw := f.object("account"); raw != nil {
		conv.Account, _ = NormalizeAccount(raw)
	}

	containers := []struct {
		key string
		dst *[]Message
	}{
		{"chat_messages", &conv.ChatMessages},
		{"messages", &conv.Messages},
		{"chats", &conv.Chats},
	}
	for _, c := range containers {
		for i, raw := range f.records(c.key) {
			msg, err := NormalizeMessage(raw)
			if err != nil {
				return nil, fmt.Errorf("conversation %s[%d]: %w", c.key, i, err)
			}
			*c.dst = append(*c.dst, *msg)
		}
	}
	for i, raw := range f.records("artifacts") {
		art, err := NormalizeArtifact(raw)
		if err != nil {
			return nil, fmt.Errorf("conversation artifacts[%d]: %w", i, err)
		}
		conv.Artifacts = append(conv.Artifacts, *art)
	}
	conv.Extra = f.extra()
	return conv, nil
}

// AllMessages returns the first non-empty of chat_messages, messages and chats.
func (c *Conversation) AllMessages() []Message {
	switch {
	case len(c.ChatMessages) > 0:
		return c.ChatMessages
	case len(c.Messages) > 0:
		return c.Messages
	}
	return c.Chats
}

// DisplayName returns name, else title.
func (c *Conversation) DisplayName() string {
	return first(c.Name, c.Title)
}

func (c *Conversation) MessageCount() int {
	return len(c.AllMessages())
}

// AttachmentCount sums attachments over all messages.
func (c *Conversation) AttachmentCount() int {
	total := 0
	for _, msg := range c.AllMessages() {
		total += len(msg.Attachments)
	}
	return total
}

// ArtifactCount counts content blocks on assistant messages.
func (c *Conversation) ArtifactCount() int {
	total := 0
	for _, msg := range c.AllMessages() {
		if msg.SenderRole().Canonical() == RoleAssistant {
			total += len(msg.AllContent())
		}
	}
	return total
}

// SenderCounts tallies messages by canonical sender role.
func (c *Conversation) SenderCounts() map[MessageRole]int {
	counts := make(map[MessageRole]int)
	for _, msg := range c.AllMessages() {
		counts[msg.SenderRole().Canonical()]++
	}
	return counts
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	type alias Conversation
	return marshalWithExtra(alias(c), c.Extra)
}

// ConversationRecords resolves the conversation list of an export envelope:
// conversations first, then data.
func ConversationRecords(envelope Record) []Record {
	return envelope.Records("conversations", "data")
}

// Envelope is the top-level object some exports wrap their conversations in.
type Envelope struct {
	Conversations []Conversation `json:"conversations,omitempty"`
	Data          []Conversation `json:"data,omitempty"`
	Metadata      Record         `json:"metadata,omitempty"`
	Meta          Record         `json:"meta,omitempty"`
	User          Record         `json:"user,omitempty"`

	Extra map[string]any `json:"-"`
}

func NormalizeEnvelope(rec Record) (*Envelope, error) {
	f := newFields(rec)
	env := &Envelope{
		Metadata: f.object("metadata"),
		Meta:     f.object("meta"),
		User:     f.object("user"),
	}
	for _, c := range []struct {
		key string
		dst *[]Conversation
	}{{"conversations", &env.Conversations}, {"data", &env.Data}} {
		for i, raw := range f.records(c.key) {
			conv, err := NormalizeConversation(raw)
			if err != nil {
				return nil, fmt.Errorf("envelope %s[%d]: %w", c.key, i, err)
			}
			*c.dst = append(*c.dst, *conv)
		}
	}
	env.Extra = f.extra()
	return env, nil
}

// AllConversations returns conversations, else data.
func (e *Envelope) AllConversations() []Conversation {
	if len(e.Conversations) > 0 {
		return e.Conversations
	}
	return e.Data
}

// ExportMetadata returns metadata, else meta.
func (e *Envelope) ExportMetadata() Record {
	if len(e.Metadata) > 0 {
		return e.Metadata
	}
	return e.Meta
}

func (e *Envelope) TotalMessageCount() int {
	total := 0
	convs := e.AllConversations()
	for i := range convs {
		total += convs[i].MessageCount()
	}
	return total
}

// Artifacts collects artifacts across all conversations.
func (e *Envelope) Artifacts() []Artifact {
	var out []Artifact
	for _, conv := range e.AllConversations() {
		out = append(out, conv.Artifacts...)
	}
	return out
}

// ConversationByTitle returns the first conversation whose title or name equals title.
func (e *Envelope) ConversationByTitle(title string) *Conversation {
	convs := e.AllConversations()
	for i := range convs {
		if deref(convs[i].Title) == title || deref(convs[i].Name) == title {
			return &convs[i]
		}
	}
	return nil
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	return marshalWithExtra(alias(e), e.Extra)
}
