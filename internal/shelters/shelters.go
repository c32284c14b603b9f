// Package shelters manages the community shelter registry stored in
// Supabase: CRUD with ownership checks, proximity search, and dashboard
// statistics.
package shelters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/lankasat/lankasat-live/internal/adapter/supabase"
)

// Shelter statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusFull     = "full"
)

var (
	ErrNotFound      = errors.New("shelter not found")
	ErrNotAuthorized = errors.New("not authorized to modify this shelter")
	ErrInvalidInput  = errors.New("invalid shelter data")
)

// Shelter is a registered relief shelter.
type Shelter struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Capacity     *int     `json:"capacity,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	ContactEmail string   `json:"contact_email,omitempty"`
	Address      string   `json:"address,omitempty"`
	Amenities    []string `json:"amenities"`
	Status       string   `json:"status"`
	AddedBy      *string  `json:"added_by"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

// CreateInput are the caller-supplied fields for a new shelter.
type CreateInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Capacity     *int     `json:"capacity,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	ContactEmail string   `json:"contact_email,omitempty"`
	Address      string   `json:"address,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
}

// UpdateInput holds optional field changes; nil fields are left untouched.
type UpdateInput struct {
	Name         *string   `json:"name,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lon          *float64  `json:"lon,omitempty"`
	Capacity     *int      `json:"capacity,omitempty"`
	ContactPhone *string   `json:"contact_phone,omitempty"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	Address      *string   `json:"address,omitempty"`
	Amenities    *[]string `json:"amenities,omitempty"`
	Status       *string   `json:"status,omitempty"`
}

// List is a page of shelters with the total matching count.
type List struct {
	Shelters []Shelter `json:"shelters"`
	Total    int       `json:"total"`
}

// MapMarker is the minimal shelter view for map display.
type MapMarker struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Capacity    *int    `json:"capacity,omitempty"`
	Status      string  `json:"status"`
	Description string  `json:"description,omitempty"`
}

// Stats are shelter counts by status for the dashboard.
type Stats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Full          int `json:"full"`
	Inactive      int `json:"inactive"`
	TotalCapacity int `json:"total_capacity"`
}

// Service implements shelter operations against the shelters table.
type Service struct {
	db     *supabase.Client
	logger *slog.Logger
}

// NewService creates the shelter service.
func NewService(db *supabase.Client, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Create registers a shelter. Guest submissions are stored with a null
// owner and stay editable by anyone until claimed by moderation.
func (s *Service) Create(ctx context.Context, in CreateInput, userID string, isGuest bool) (Shelter, error) {
	if err := validateCreate(in); err != nil {
		return Shelter{}, err
	}

	amenities := in.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	var addedBy *string
	if !isGuest && userID != "" {
		addedBy = &userID
	}

	row := Shelter{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Description:  in.Description,
		Lat:          in.Lat,
		Lon:          in.Lon,
		Capacity:     in.Capacity,
		ContactPhone: in.ContactPhone,
		ContactEmail: in.ContactEmail,
		Address:      in.Address,
		Amenities:    amenities,
		Status:       StatusActive,
		AddedBy:      addedBy,
	}

	var created []Shelter
	if err := s.db.Table("shelters").Insert(ctx, row, &created); err != nil {
		return Shelter{}, fmt.Errorf("create shelter: %w", err)
	}
	if len(created) == 0 {
		return Shelter{}, fmt.Errorf("create shelter: no row returned")
	}

	s.logger.Info("shelter created", "shelter_id", created[0].ID, "guest", isGuest)
	return created[0], nil
}

// All lists shelters newest first, optionally filtered by status. An empty
// status returns every shelter.
func (s *Service) All(ctx context.Context, status string, limit, offset int) (List, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.Table("shelters").WithCount()
	if status != "" {
		q = q.Eq("status", status)
	}
	q = q.Order("created_at", true).Range(offset, offset+limit-1)

	var rows []Shelter
	total, err := q.Execute(ctx, &rows)
	if err != nil {
		return List{}, fmt.Errorf("list shelters: %w", err)
	}
	if total < 0 {
		total = len(rows)
	}
	if rows == nil {
		rows = []Shelter{}
	}
	return List{Shelters: rows, Total: total}, nil
}

// ByID fetches one shelter.
func (s *Service) ByID(ctx context.Context, id string) (Shelter, error) {
	var rows []Shelter
	if _, err := s.db.Table("shelters").Eq("id", id).Execute(ctx, &rows); err != nil {
		return Shelter{}, fmt.Errorf("get shelter: %w", err)
	}
	if len(rows) == 0 {
		return Shelter{}, ErrNotFound
	}
	return rows[0], nil
}

// Update applies field changes. Owned shelters may only be changed by
// their owner; shelters with a null owner (guest submissions) are open.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, userID string) (Shelter, error) {
	existing, err := s.ByID(ctx, id)
	if err != nil {
		return Shelter{}, err
	}
	if err := authorize(existing, userID); err != nil {
		return Shelter{}, err
	}
	if in.Status != nil && !validStatus(*in.Status) {
		return Shelter{}, fmt.Errorf("%w: status must be active, inactive, or full", ErrInvalidInput)
	}

	changes := buildChanges(in)
	if len(changes) == 0 {
		return existing, nil
	}

	var rows []Shelter
	if err := s.db.Table("shelters").Eq("id", id).Update(ctx, changes, &rows); err != nil {
		return Shelter{}, fmt.Errorf("update shelter: %w", err)
	}
	if len(rows) == 0 {
		return Shelter{}, ErrNotFound
	}
	return rows[0], nil
}

// Delete removes a shelter, subject to the same ownership rule as Update.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	existing, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(existing, userID); err != nil {
		return err
	}

	if err := s.db.Table("shelters").Eq("id", id).Delete(ctx); err != nil {
		return fmt.Errorf("delete shelter: %w", err)
	}
	s.logger.Info("shelter deleted", "shelter_id", id)
	return nil
}

// Nearby finds active shelters within radiusKm of a point using a bounding
// box approximation, sorted nearest first.
func (s *Service) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]Shelter, error) {
	if radiusKm <= 0 {
		radiusKm = 50
	}
	if limit <= 0 {
		limit = 50
	}

	// 1 degree latitude is ~111km; longitude shrinks with cos(lat).
	latDelta := radiusKm / 111.0
	lonDelta := radiusKm / (111.0 * math.Cos(lat*math.Pi/180))

	var rows []Shelter
	_, err := s.db.Table("shelters").
		Eq("status", StatusActive).
		Gte("lat", lat-latDelta).
		Lte("lat", lat+latDelta).
		Gte("lon", lon-lonDelta).
		Lte("lon", lon+lonDelta).
		Limit(limit).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("search shelters: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool {
		return sqDist(rows[i], lat, lon) < sqDist(rows[j], lat, lon)
	})
	return rows, nil
}

// ForMap returns active shelters trimmed down to map marker fields.
func (s *Service) ForMap(ctx context.Context) ([]MapMarker, error) {
	var rows []MapMarker
	_, err := s.db.Table("shelters").
		Select("id,name,lat,lon,capacity,status,description").
		Eq("status", StatusActive).
		Execute(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("map shelters: %w", err)
	}
	if rows == nil {
		rows = []MapMarker{}
	}
	return rows, nil
}

// Stats counts shelters by status and sums active capacity.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	count := func(status string) (int, error) {
		q := s.db.Table("shelters").Select("id").WithCount().Limit(1)
		if status != "" {
			q = q.Eq("status", status)
		}
		return q.Execute(ctx, nil)
	}

	var err error
	if stats.Total, err = count(""); err != nil {
		return Stats{}, fmt.Errorf("shelter stats: %w", err)
	}
	if stats.Active, err = count(StatusActive); err != nil {
		return Stats{}, fmt.Errorf("shelter stats: %w", err)
	}
	if stats.Full, err = count(StatusFull); err != nil {
		return Stats{}, fmt.Errorf("shelter stats: %w", err)
	}
	if stats.Inactive, err = count(StatusInactive); err != nil {
		return Stats{}, fmt.Errorf("shelter stats: %w", err)
	}

	var capRows []struct {
		Capacity *int `json:"capacity"`
	}
	_, err = s.db.Table("shelters").
		Select("capacity").
		Eq("status", StatusActive).
		IsNot("capacity", "null").
		Execute(ctx, &capRows)
	if err != nil {
		return Stats{}, fmt.Errorf("shelter stats: %w", err)
	}
	for _, r := range capRows {
		if r.Capacity != nil {
			stats.TotalCapacity += *r.Capacity
		}
	}
	return stats, nil
}

func validateCreate(in CreateInput) error {
	if len(in.Name) < 2 || len(in.Name) > 200 {
		return fmt.Errorf("%w: name must be 2-200 characters", ErrInvalidInput)
	}
	if len(in.Description) > 1000 {
		return fmt.Errorf("%w: description too long", ErrInvalidInput)
	}
	if in.Lat < -90 || in.Lat > 90 || in.Lon < -180 || in.Lon > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	if in.Capacity != nil && *in.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be non-negative", ErrInvalidInput)
	}
	return nil
}

func validStatus(status string) bool {
	return status == StatusActive || status == StatusInactive || status == StatusFull
}

// authorize enforces ownership: shelters with an owner may only be changed
// by that owner.
func authorize(shelter Shelter, userID string) error {
	if userID != "" && shelter.AddedBy != nil && *shelter.AddedBy != userID {
		return ErrNotAuthorized
	}
	return nil
}

func buildChanges(in UpdateInput) map[string]any {
	changes := map[string]any{}
	if in.Name != nil {
		changes["name"] = *in.Name
	}
	if in.Description != nil {
		changes["description"] = *in.Description
	}
	if in.Lat != nil {
		changes["lat"] = *in.Lat
	}
	if in.Lon != nil {
		changes["lon"] = *in.Lon
	}
	if in.Capacity != nil {
		changes["capacity"] = *in.Capacity
	}
	if in.ContactPhone != nil {
		changes["contact_phone"] = *in.ContactPhone
	}
	if in.ContactEmail != nil {
		changes["contact_email"] = *in.ContactEmail
	}
	if in.Address != nil {
		changes["address"] = *in.Address
	}
	if in.Amenities != nil {
		changes["amenities"] = *in.Amenities
	}
	if in.Status != nil {
		changes["status"] = *in.Status
	}
	return changes
}

func sqDist(sh Shelter, lat, lon float64) float64 {
	dlat := sh.Lat - lat
	dlon := sh.Lon - lon
	return dlat*dlat + dlon*dlon
}
