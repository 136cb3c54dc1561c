package mongo

import (
	"testing"
	"time"

	"github.com/expo-registration-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDynamicFields_DropsReservedAndNil(t *testing.T) {
	got := dynamicFields(map[string]any{
		"booth_size": "9sqm",
		"email":      "spoof@expo.io",
		"_id":        "x",
		"notes":      nil,
	})
	assert.Equal(t, map[string]any{"booth_size": "9sqm"}, got)
	assert.Nil(t, dynamicFields(nil))
}

func TestUpdateDoc_SplitsSetAndUnset(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	doc := updateDoc(map[string]any{
		"status":    domain.StatusCheckedIn,
		"dietary":   nil,
		"_id":       "other",
		"company":   nil,
		"talk_slot": "B2",
	}, now)

	require.Len(t, doc, 2)
	assert.Equal(t, "$set", doc[0].Key)
	assert.Equal(t, bson.M{
		"updated_at": now,
		"status":     domain.StatusCheckedIn,
		"company":    nil,
		"talk_slot":  "B2",
	}, doc[0].Value)
	assert.Equal(t, "$unset", doc[1].Key)
	assert.Equal(t, bson.M{"dietary": ""}, doc[1].Value)
}

func TestRegistration_InlinesDynamicFields(t *testing.T) {
	reg := domain.Registration{
		ID:     "01HX",
		Type:   domain.RegistrationVisitor,
		Email:  "guest@expo.io",
		Fields: map[string]any{"company_size": "50"},
	}
	raw, err := bson.Marshal(reg)
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "01HX", doc["_id"])
	assert.Equal(t, "50", doc["company_size"])
	assert.NotContains(t, doc, "fields")

	var back domain.Registration
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, "50", back.Fields["company_size"])
}
