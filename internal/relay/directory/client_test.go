package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportrelay/internal/relay/types"
)

func TestTagFilter(t *testing.T) {
	tests := []struct {
		name   string
		tags   []*types.Tag
		expect string
	}{
		{"NoTags_Fallback", nil, "20"},
		{"SingleTag", []*types.Tag{{ID: 5}}, "5"},
		{"OrderPreserved", []*types.Tag{{ID: 9}, {ID: 3}, {ID: 7}}, "9,3,7"},
		{"DuplicatesKept", []*types.Tag{{ID: 4}, {ID: 4}}, "4,4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &types.Report{Tags: tt.tags}
			assert.Equal(t, tt.expect, tagFilter(report))
		})
	}
}

func TestClient_Resolve_Search(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("tags")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(searchResults{
			Count: 2,
			Results: []*types.Subscription{
				{ID: 1, URL: "https://a.example", ExpectedResponseCode: 200},
				{ID: 2, URL: "https://b.example", DiscordWebhook: true},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	report := &types.Report{Tags: []*types.Tag{{ID: 5}, {ID: 8}}}

	subs, err := client.Resolve(context.Background(), report, nil)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, int64(1), subs[0].ID)
	assert.Equal(t, int64(2), subs[1].ID)

	assert.Equal(t, "/subscription", gotPath)
	assert.Equal(t, "5,8", gotQuery)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestClient_Resolve_FallbackTag(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("tags")
		json.NewEncoder(w).Encode(searchResults{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, err := client.Resolve(context.Background(), &types.Report{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "20", gotQuery)
}

func TestClient_Resolve_SingleSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscription/42", r.URL.Path)
		json.NewEncoder(w).Encode(types.Subscription{ID: 42, URL: "https://c.example"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	id := int64(42)

	subs, err := client.Resolve(context.Background(), &types.Report{}, &id)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(42), subs[0].ID)
}

func TestClient_Resolve_LookupFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	id := int64(404)

	_, err := client.Resolve(context.Background(), &types.Report{}, &id)
	assert.ErrorIs(t, err, ErrLookup)

	// Search failures are lookup failures too.
	_, err = client.Resolve(context.Background(), &types.Report{}, nil)
	assert.ErrorIs(t, err, ErrLookup)
}

func TestClient_Resolve_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "test-key")
	_, err := client.Resolve(context.Background(), &types.Report{}, nil)
	assert.ErrorIs(t, err, ErrLookup)
}
