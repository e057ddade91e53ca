package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportrelay/internal/relay/types"
)

func TestMarshal_CyclicTagCategory(t *testing.T) {
	category := &types.Category{ID: 1, Name: "content"}
	tag := &types.Tag{ID: 5, Name: "spam", Category: category}
	category.Tags = []*types.Tag{tag}

	report := &types.Report{
		ID:   10,
		Tags: []*types.Tag{tag},
	}

	data, err := Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	tags := decoded["tags"].([]interface{})
	require.Len(t, tags, 1)
	tagObj := tags[0].(map[string]interface{})
	assert.Equal(t, "spam", tagObj["name"])

	// The category is encoded once; its back-reference to the tag is
	// pruned to null.
	catObj := tagObj["category"].(map[string]interface{})
	assert.Equal(t, "content", catObj["name"])
	backTags := catObj["tags"].([]interface{})
	require.Len(t, backTags, 1)
	assert.Nil(t, backTags[0])
}

func TestMarshal_SharedAcyclicReference(t *testing.T) {
	user := &types.User{ID: 99}
	report := &types.Report{
		ID:                1,
		ReportedUsers:     []*types.User{user},
		ConfirmationUsers: []*types.User{user},
	}

	data, err := Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Shared but acyclic references are encoded in full at both sites.
	reported := decoded["reportedUsers"].([]interface{})
	confirmed := decoded["confirmationUsers"].([]interface{})
	require.Len(t, reported, 1)
	require.Len(t, confirmed, 1)
	assert.Equal(t, float64(99), reported[0].(map[string]interface{})["id"])
	assert.Equal(t, float64(99), confirmed[0].(map[string]interface{})["id"])
}

func TestMarshal_ConsumerSubscriptionCycle(t *testing.T) {
	consumer := &types.Consumer{ID: 3, Name: "ops"}
	sub := &types.Subscription{ID: 8, URL: "https://example.com/hook", Consumer: consumer}
	consumer.Subscriptions = []*types.Subscription{sub}

	data, err := Marshal(sub)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	consObj := decoded["consumer"].(map[string]interface{})
	subs := consObj["subscriptions"].([]interface{})
	require.Len(t, subs, 1)
	assert.Nil(t, subs[0])
}

func TestMarshal_RespectsTags(t *testing.T) {
	report := &types.Report{
		ID:         7,
		InsertDate: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, float64(7), decoded["id"])
	// time.Time goes through its own marshaler.
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded["insertDate"])
	// omitempty fields stay out.
	_, hasReason := decoded["reason"]
	assert.False(t, hasReason)
	_, hasOld := decoded["guildId"]
	assert.False(t, hasOld)
}

func TestMarshal_Primitives(t *testing.T) {
	data, err := Marshal(map[string]interface{}{"a": 1, "b": "two", "c": []int{1, 2}})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1), decoded["a"])
	assert.Equal(t, "two", decoded["b"])
	assert.Equal(t, []interface{}{float64(1), float64(2)}, decoded["c"])
}

func TestMarshal_Event(t *testing.T) {
	category := &types.Category{ID: 2, Name: "abuse"}
	tag := &types.Tag{ID: 4, Name: "harassment", Category: category}
	category.Tags = []*types.Tag{tag}

	notBefore := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	evt := &types.Event{
		Type: types.EventEditReport,
		Data: types.EventPayload{
			Report:  &types.Report{ID: 11, Tags: []*types.Tag{tag}},
			Attempt: 3,
		},
		NotBefore: &notBefore,
	}

	data, err := Marshal(evt)
	require.NoError(t, err)

	// The encoded event round-trips through the standard decoder.
	decoded, err := types.DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, types.EventEditReport, decoded.Type)
	assert.Equal(t, int64(11), decoded.Data.Report.ID)
	assert.Equal(t, 3, decoded.Data.Attempt)
	require.NotNil(t, decoded.NotBefore)
	assert.True(t, decoded.NotBefore.Equal(notBefore))
}
