package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"jan-server/services/archive-api/internal/domain/export"
)

func TestDocument_EtoD(t *testing.T) {
	doc := Document{
		NaturalKey: "c1",
		Body:       datatypes.JSON(`{"uuid":"c1","name":"Chat","size":9007199254740993}`),
		ImportIDs:  datatypes.JSON(`["imp_a","imp_b"]`),
	}

	rec, err := doc.EtoD()
	require.NoError(t, err)
	assert.Equal(t, "Chat", rec["name"])
	assert.Equal(t, json.Number("9007199254740993"), rec["size"])
	assert.Equal(t, []string{"imp_a", "imp_b"}, rec[export.FieldImportIDs])
}

func TestDocument_EtoD_EmptyImportIDs(t *testing.T) {
	doc := Document{Body: datatypes.JSON(`{"uuid":"u1"}`)}

	rec, err := doc.EtoD()
	require.NoError(t, err)
	assert.Equal(t, []string{}, rec[export.FieldImportIDs])

	_, err = (&Document{Body: datatypes.JSON(`[1,2]`)}).EtoD()
	assert.Error(t, err)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "conversations", ConversationDocument{}.TableName())
	assert.Equal(t, "users", UserDocument{}.TableName())
	assert.Equal(t, "projects", ProjectDocument{}.TableName())
	assert.Equal(t, "import_history", ImportHistory{}.TableName())
}
