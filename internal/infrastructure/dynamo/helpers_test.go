package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]any{"status": "checked_in"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "status"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]any{
		"name":         "Ada",
		"company":      "Analytical Engines",
		"company_size": "50",
	}
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)
	assert.Equal(t, "company", ue1.Names["#f0"])
	assert.Equal(t, "company_size", ue1.Names["#f1"])
	assert.Equal(t, "name", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_PassesAttributeValuesThrough(t *testing.T) {
	raw := &types.AttributeValueMemberS{Value: "42"}
	ue, err := buildUpdateExpr(map[string]any{"booth": raw, "vip": true})
	require.NoError(t, err)
	assert.Same(t, raw, ue.Values[":v0"])
	boolVal, isBool := ue.Values[":v1"].(*types.AttributeValueMemberBOOL)
	require.True(t, isBool)
	assert.True(t, boolVal.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]any{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestCursor_RoundTrip(t *testing.T) {
	c := encodeCursor("01HXYZ")
	id, err := decodeCursor(c)
	require.NoError(t, err)
	assert.Equal(t, "01HXYZ", id)

	_, err = decodeCursor("%%%")
	assert.Error(t, err)
}

func TestBuildUpdateExpr_RemovesMarkedFields(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]any{
		"badge_name": removeAttr,
		"company":    "Analytical Engines",
		"diet":       removeAttr,
	})
	require.NoError(t, err)
	assert.Equal(t, "SET #f1 = :v1 REMOVE #f0, #f2", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "badge_name", "#f1": "company", "#f2": "diet"}, ue.Names)
	assert.Len(t, ue.Values, 1)
	assert.Contains(t, ue.Values, ":v1")
}

func TestBuildUpdateExpr_RemoveOnly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]any{"diet": removeAttr})
	require.NoError(t, err)
	assert.Equal(t, "REMOVE #f0", ue.Expr)
	assert.Empty(t, ue.Values)
}
