package export

import "encoding/json"

// PromptTemplate is a project's prompt_template. Exports carry either a list of
// templates or a single template string; whichever was present is re-emitted as is.
type PromptTemplate struct {
	List []any
	Text *string
}

func (t *PromptTemplate) Len() int {
	if t == nil {
		return 0
	}
	if t.List != nil {
		return len(t.List)
	}
	if t.Text != nil && *t.Text != "" {
		return 1
	}
	return 0
}

func (t PromptTemplate) MarshalJSON() ([]byte, error) {
	if t.List != nil {
		return json.Marshal(t.List)
	}
	return json.Marshal(t.Text)
}

func (f *fields) promptTemplate(key string) *PromptTemplate {
	switch t := f.rec[key].(type) {
	case []any:
		f.take(key)
		return &PromptTemplate{List: t}
	case string:
		f.take(key)
		return &PromptTemplate{Text: &t}
	}
	return nil
}

// Project groups documents and prompt templates.
type Project struct {
	UUID             *string         `json:"uuid,omitempty"`
	Name             *string         `json:"name,omitempty"`
	Description      *string         `json:"description,omitempty"`
	IsPrivate        *bool           `json:"is_private,omitempty"`
	IsStarterProject *bool           `json:"is_starter_project,omitempty"`
	Docs             []Record        `json:"docs,omitempty"`
	PromptTemplate   *PromptTemplate `json:"prompt_template,omitempty"`
	CreatedAt        *string         `json:"created_at,omitempty"`
	UpdatedAt        *string         `json:"updated_at,omitempty"`

	Extra map[string]any `json:"-"`
}

func NormalizeProject(rec Record) (*Project, error) {
	f := newFields(rec)
	return &Project{
		UUID:             f.str("uuid"),
		Name:             f.str("name"),
		Description:      f.str("description"),
		IsPrivate:        f.boolean("is_private"),
		IsStarterProject: f.boolean("is_starter_project"),
		Docs:             f.records("docs"),
		PromptTemplate:   f.promptTemplate("prompt_template"),
		CreatedAt:        f.str("created_at"),
		UpdatedAt:        f.str("updated_at"),
		Extra:            f.extra(),
	}, nil
}

func (p *Project) DocsCount() int {
	return len(p.Docs)
}

// TemplatesCount is the number of prompt templates; a non-empty template string counts as one.
func (p *Project) TemplatesCount() int {
	return p.PromptTemplate.Len()
}

func (p Project) MarshalJSON() ([]byte, error) {
	type alias Project
	return marshalWithExtra(alias(p), p.Extra)
}

// User is an account holder. Some exports key users by id instead of uuid.
type User struct {
	UUID         *string `json:"uuid,omitempty"`
	ID           *string `json:"id,omitempty"`
	Email        *string `json:"email,omitempty"`
	EmailAddress *string `json:"email_address,omitempty"`
	Name         *string `json:"name,omitempty"`
	FullName     *string `json:"full_name,omitempty"`
	CreatedAt    *string `json:"created_at,omitempty"`
	UpdatedAt    *string `json:"updated_at,omitempty"`

	Extra map[string]any `json:"-"`
}

func NormalizeUser(rec Record) (*User, error) {
	f := newFields(rec)
	return &User{
		UUID:         f.str("uuid"),
		ID:           f.str("id"),
		Email:        f.str("email"),
		EmailAddress: f.str("email_address"),
		Name:         f.str("name"),
		FullName:     f.str("full_name"),
		CreatedAt:    f.str("created_at"),
		UpdatedAt:    f.str("updated_at"),
		Extra:        f.extra(),
	}, nil
}

// Key returns the natural key of the user: uuid, else id. Numeric ids stay in Extra
// and resolve the same way NaturalKey does.
func (u *User) Key() string {
	rec := Record{FieldUUID: u.Extra[FieldUUID], FieldID: u.Extra[FieldID]}
	if u.UUID != nil {
		rec[FieldUUID] = *u.UUID
	}
	if u.ID != nil {
		rec[FieldID] = *u.ID
	}
	key, _ := NaturalKey(KindUser, rec)
	return key
}

// EffectiveEmail returns email, else email_address.
func (u *User) EffectiveEmail() string {
	return first(u.Email, u.EmailAddress)
}

// DisplayName returns name, else full_name.
func (u *User) DisplayName() string {
	return first(u.Name, u.FullName)
}

func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return marshalWithExtra(alias(u), u.Extra)
}
