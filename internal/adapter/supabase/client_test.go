package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func testSupabase(baseURL string) *Client {
	return &Client{
		restURL:    baseURL + "/rest/v1",
		key:        "sb_secret_test",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestQuery_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/shelters", r.URL.Path)
		assert.Equal(t, "sb_secret_test", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer sb_secret_test", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, "eq.active", q.Get("status"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "40", q.Get("offset"))

		require.NoError(t, json.NewEncoder(w).Encode([]row{{ID: "1", Name: "Colombo Shelter"}}))
	}))
	defer srv.Close()

	c := testSupabase(srv.URL)

	var rows []row
	count, err := c.Table("shelters").
		Eq("status", "active").
		Order("created_at", true).
		Range(40, 59).
		Execute(context.Background(), &rows)
	require.NoError(t, err)
	assert.Equal(t, -1, count)
	require.Len(t, rows, 1)
	assert.Equal(t, "Colombo Shelter", rows[0].Name)
}

func TestQuery_ExecuteWithCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "0-9/137")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testSupabase(srv.URL)

	var rows []row
	count, err := c.Table("shelters").WithCount().Limit(10).Execute(context.Background(), &rows)
	require.NoError(t, err)
	assert.Equal(t, 137, count)
}

func TestQuery_NullFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "added_by=is.null")
		assert.Contains(t, r.URL.RawQuery, "deleted_at=not.is.null")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testSupabase(srv.URL)

	var rows []row
	_, err := c.Table("shelters").Is("added_by", "null").IsNot("deleted_at", "null").Execute(context.Background(), &rows)
	require.NoError(t, err)
}

func TestQuery_Insert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var body row
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "New Shelter", body.Name)

		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode([]row{{ID: "42", Name: body.Name}}))
	}))
	defer srv.Close()

	c := testSupabase(srv.URL)

	var created []row
	err := c.Table("shelters").Insert(context.Background(), row{Name: "New Shelter"}, &created)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "42", created[0].ID)
}

func TestQuery_UpdateAppliesFiltersWithoutSelect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "id=eq.42", r.URL.RawQuery)
		_, _ = w.Write([]byte(`[{"id":"42","name":"Renamed"}]`))
	}))
	defer srv.Close()

	c := testSupabase(srv.URL)

	var updated []row
	err := c.Table("shelters").Eq("id", "42").Update(context.Background(), map[string]string{"name": "Renamed"}, &updated)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "Renamed", updated[0].Name)
}

func TestQuery_Delete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "id=eq.42", r.URL.RawQuery)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testSupabase(srv.URL)

	err := c.Table("shelters").Eq("id", "42").Delete(context.Background())
	require.NoError(t, err)
}

func TestQuery_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"duplicate key value"}`))
	}))
	defer srv.Close()

	c := testSupabase(srv.URL)

	err := c.Table("users").Insert(context.Background(), row{Name: "dup"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "duplicate key value")
}
