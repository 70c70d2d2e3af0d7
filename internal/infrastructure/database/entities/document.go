package entities

import (
	"bytes"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"jan-server/services/archive-api/internal/domain/export"
)

// Document is one imported entity. Body holds the raw record as jsonb; ImportIDs is the
// JSON array of batch ids that have touched it.
type Document struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	NaturalKey string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Body       datatypes.JSON `gorm:"type:jsonb;not null"`
	ImportIDs  datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
}

type ConversationDocument struct {
	Document
}

func (ConversationDocument) TableName() string {
	return export.CollectionConversations
}

type UserDocument struct {
	Document
}

func (UserDocument) TableName() string {
	return export.CollectionUsers
}

type ProjectDocument struct {
	Document
}

func (ProjectDocument) TableName() string {
	return export.CollectionProjects
}

// ImportHistory is one import run. Body carries the full summary document.
type ImportHistory struct {
	ID          uint           `gorm:"primaryKey"`
	ImportID    string         `gorm:"type:varchar(64);uniqueIndex;not null"`
	AccountName string         `gorm:"type:varchar(255);index;not null"`
	Timestamp   time.Time      `gorm:"index;not null"`
	Status      string         `gorm:"type:varchar(20);not null"`
	Body        datatypes.JSON `gorm:"type:jsonb;not null"`
}

func (ImportHistory) TableName() string {
	return export.CollectionImportHistory
}

// DecodeRecord parses a jsonb body, keeping numbers as json.Number.
func DecodeRecord(body []byte) (export.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rec export.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = export.Record{}
	}
	return rec, nil
}

// EtoD converts a stored document into the record shape served by browse.
func (d *Document) EtoD() (export.Record, error) {
	rec, err := DecodeRecord(d.Body)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	if len(d.ImportIDs) > 0 {
		if err := json.Unmarshal(d.ImportIDs, &ids); err != nil {
			return nil, err
		}
	}
	rec[export.FieldImportIDs] = ids
	return rec, nil
}
