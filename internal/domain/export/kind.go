package export

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind identifies which entity a payload file carries.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindUser         Kind = "user"
	KindProject      Kind = "project"
	KindUnknown      Kind = ""
)

// Persisted collection names.
const (
	CollectionConversations = "conversations"
	CollectionUsers         = "users"
	CollectionProjects      = "projects"
	CollectionImportHistory = "import_history"
)

// Provenance fields stamped onto every imported record.
const (
	FieldImportID    = "_import_id"
	FieldImportIDs   = "_import_ids"
	FieldAccountName = "_account_name"
	FieldImportedAt  = "_imported_at"
	FieldUUID        = "uuid"
	FieldID          = "id"
)

// Kinds lists the loadable kinds in load order.
var Kinds = []Kind{KindConversation, KindUser, KindProject}

// Collection returns the store collection for k, or "" for KindUnknown.
func (k Kind) Collection() string {
	switch k {
	case KindConversation:
		return CollectionConversations
	case KindUser:
		return CollectionUsers
	case KindProject:
		return CollectionProjects
	}
	return ""
}

// NaturalKey resolves the deduplication key of rec. Conversations and projects
// use uuid only; users fall back to id.
func NaturalKey(kind Kind, rec Record) (string, bool) {
	if key, ok := keyString(rec[FieldUUID]); ok {
		return key, true
	}
	if kind == KindUser {
		return keyString(rec[FieldID])
	}
	return "", false
}

func keyString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}
