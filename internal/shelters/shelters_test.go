package shelters

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/supabase"
	"github.com/lankasat/lankasat-live/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// fakeSheltersDB emulates the Supabase shelters table REST endpoint with
// enough filter support for the service queries.
type fakeSheltersDB struct {
	rows []Shelter
}

func (db *fakeSheltersDB) match(r *http.Request, sh Shelter) bool {
	for key, vals := range r.URL.Query() {
		for _, val := range vals {
			if !matchFilter(key, val, sh) {
				return false
			}
		}
	}
	return true
}

func matchFilter(key, val string, sh Shelter) bool {
	switch {
	case key == "id" && strings.HasPrefix(val, "eq."):
		return sh.ID == val[3:]
	case key == "status" && strings.HasPrefix(val, "eq."):
		return sh.Status == val[3:]
	case key == "lat" && strings.HasPrefix(val, "gte."):
		f, _ := strconv.ParseFloat(val[4:], 64)
		return sh.Lat >= f
	case key == "lat" && strings.HasPrefix(val, "lte."):
		f, _ := strconv.ParseFloat(val[4:], 64)
		return sh.Lat <= f
	case key == "lon" && strings.HasPrefix(val, "gte."):
		f, _ := strconv.ParseFloat(val[4:], 64)
		return sh.Lon >= f
	case key == "lon" && strings.HasPrefix(val, "lte."):
		f, _ := strconv.ParseFloat(val[4:], 64)
		return sh.Lon <= f
	case key == "capacity" && val == "not.is.null":
		return sh.Capacity != nil
	}
	return true
}

func (db *fakeSheltersDB) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/v1/shelters", r.URL.Path)

		switch r.Method {
		case http.MethodGet:
			matches := []Shelter{}
			for _, sh := range db.rows {
				if db.match(r, sh) {
					matches = append(matches, sh)
				}
			}
			total := len(matches)
			if limit := r.URL.Query().Get("limit"); limit != "" {
				if n, _ := strconv.Atoi(limit); n < len(matches) {
					matches = matches[:n]
				}
			}
			if r.Header.Get("Prefer") == "count=exact" {
				w.Header().Set("Content-Range", "0-0/"+strconv.Itoa(total))
			}
			require.NoError(t, json.NewEncoder(w).Encode(matches))
		case http.MethodPost:
			var sh Shelter
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sh))
			sh.CreatedAt = "2024-06-15T00:00:00Z"
			db.rows = append(db.rows, sh)
			w.WriteHeader(http.StatusCreated)
			require.NoError(t, json.NewEncoder(w).Encode([]Shelter{sh}))
		case http.MethodPatch:
			var changes map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&changes))
			updated := []Shelter{}
			for i := range db.rows {
				if db.match(r, db.rows[i]) {
					if name, ok := changes["name"].(string); ok {
						db.rows[i].Name = name
					}
					if status, ok := changes["status"].(string); ok {
						db.rows[i].Status = status
					}
					updated = append(updated, db.rows[i])
				}
			}
			require.NoError(t, json.NewEncoder(w).Encode(updated))
		case http.MethodDelete:
			kept := db.rows[:0]
			for _, sh := range db.rows {
				if !db.match(r, sh) {
					kept = append(kept, sh)
				}
			}
			db.rows = kept
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func testShelterService(t *testing.T, db *fakeSheltersDB) *Service {
	srv := httptest.NewServer(db.handler(t))
	t.Cleanup(srv.Close)

	client := supabase.NewClient(&config.Config{
		SupabaseURL:       srv.URL,
		SupabaseSecretKey: "sb_secret_test",
		SupabaseTimeout:   5 * time.Second,
	})
	return NewService(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreate_RegisteredUserOwnsShelter(t *testing.T) {
	db := &fakeSheltersDB{}
	s := testShelterService(t, db)

	sh, err := s.Create(context.Background(), CreateInput{
		Name: "Galle Community Hall", Lat: 6.05, Lon: 80.22, Capacity: intPtr(120),
	}, "user-1", false)
	require.NoError(t, err)

	assert.NotEmpty(t, sh.ID)
	assert.Equal(t, StatusActive, sh.Status)
	require.NotNil(t, sh.AddedBy)
	assert.Equal(t, "user-1", *sh.AddedBy)
	assert.NotNil(t, sh.Amenities, "amenities default to an empty list")
}

func TestCreate_GuestShelterHasNullOwner(t *testing.T) {
	db := &fakeSheltersDB{}
	s := testShelterService(t, db)

	sh, err := s.Create(context.Background(), CreateInput{
		Name: "Temple Shelter", Lat: 7.29, Lon: 80.63,
	}, "guest-id", true)
	require.NoError(t, err)
	assert.Nil(t, sh.AddedBy)
}

func TestCreate_Validation(t *testing.T) {
	s := testShelterService(t, &fakeSheltersDB{})

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"short name", CreateInput{Name: "X", Lat: 6, Lon: 80}},
		{"bad latitude", CreateInput{Name: "Valid Name", Lat: 95, Lon: 80}},
		{"negative capacity", CreateInput{Name: "Valid Name", Lat: 6, Lon: 80, Capacity: intPtr(-1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(context.Background(), tc.in, "user-1", false)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAll_FilterAndCount(t *testing.T) {
	db := &fakeSheltersDB{rows: []Shelter{
		{ID: "1", Name: "A", Status: StatusActive},
		{ID: "2", Name: "B", Status: StatusInactive},
		{ID: "3", Name: "C", Status: StatusActive},
	}}
	s := testShelterService(t, db)

	list, err := s.All(context.Background(), StatusActive, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Shelters, 2)

	all, err := s.All(context.Background(), "", 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
}

func TestUpdate_OwnershipEnforced(t *testing.T) {
	db := &fakeSheltersDB{rows: []Shelter{
		{ID: "owned", Name: "Owned", Status: StatusActive, AddedBy: strPtr("user-1")},
		{ID: "guest", Name: "Guest Added", Status: StatusActive},
	}}
	s := testShelterService(t, db)

	// Owner can update.
	sh, err := s.Update(context.Background(), "owned", UpdateInput{Name: strPtr("Renamed")}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", sh.Name)

	// Someone else cannot.
	_, err = s.Update(context.Background(), "owned", UpdateInput{Name: strPtr("Hijacked")}, "user-2")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// Guest-added shelters are open for anyone to update.
	sh, err = s.Update(context.Background(), "guest", UpdateInput{Status: strPtr(StatusFull)}, "user-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFull, sh.Status)
}

func TestUpdate_InvalidStatus(t *testing.T) {
	db := &fakeSheltersDB{rows: []Shelter{{ID: "1", Name: "A", Status: StatusActive}}}
	s := testShelterService(t, db)

	_, err := s.Update(context.Background(), "1", UpdateInput{Status: strPtr("closed")}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdate_NotFound(t *testing.T) {
	s := testShelterService(t, &fakeSheltersDB{})

	_, err := s.Update(context.Background(), "missing", UpdateInput{}, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := &fakeSheltersDB{rows: []Shelter{
		{ID: "owned", Status: StatusActive, AddedBy: strPtr("user-1")},
	}}
	s := testShelterService(t, db)

	err := s.Delete(context.Background(), "owned", "user-2")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, s.Delete(context.Background(), "owned", "user-1"))
	assert.Empty(t, db.rows)
}

func TestNearby_SortsByDistance(t *testing.T) {
	db := &fakeSheltersDB{rows: []Shelter{
		{ID: "far", Name: "Kandy Hall", Status: StatusActive, Lat: 7.29, Lon: 80.63},
		{ID: "near", Name: "Colombo Hall", Status: StatusActive, Lat: 6.95, Lon: 79.87},
		{ID: "inactive", Name: "Closed", Status: StatusInactive, Lat: 6.94, Lon: 79.86},
	}}
	s := testShelterService(t, db)

	// Search around Colombo with a radius wide enough to include Kandy.
	results, err := s.Nearby(context.Background(), 6.93, 79.85, 150, 50)
	require.NoError(t, err)

	require.Len(t, results, 2, "inactive shelters are excluded")
	assert.Equal(t, "near", results[0].ID)
	assert.Equal(t, "far", results[1].ID)
}

func TestForMap(t *testing.T) {
	db := &fakeSheltersDB{rows: []Shelter{
		{ID: "1", Name: "A", Status: StatusActive, Lat: 6.0, Lon: 80.0, Capacity: intPtr(50)},
		{ID: "2", Name: "B", Status: StatusInactive, Lat: 7.0, Lon: 81.0},
	}}
	s := testShelterService(t, db)

	markers, err := s.ForMap(context.Background())
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "A", markers[0].Name)
}

func TestStats(t *testing.T) {
	db := &fakeSheltersDB{rows: []Shelter{
		{ID: "1", Status: StatusActive, Capacity: intPtr(100)},
		{ID: "2", Status: StatusActive, Capacity: intPtr(50)},
		{ID: "3", Status: StatusActive},
		{ID: "4", Status: StatusFull, Capacity: intPtr(200)},
		{ID: "5", Status: StatusInactive},
	}}
	s := testShelterService(t, db)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 1, stats.Full)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 150, stats.TotalCapacity, "only active shelters with capacity count")
}
