// Package relief serves the flood relief donation directory loaded from a
// local CSV export of the community-maintained sheet.
package relief

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SheetURL points users at the editable source spreadsheet.
const SheetURL = "https://docs.google.com/spreadsheets/d/1Wrw6JiVzlYZ9lCeBWg70LuP4yqgMuoDH45OmYI2kLcY/edit"

// ErrUnknownCategory is returned for category lookups outside the directory.
var ErrUnknownCategory = errors.New("unknown relief category")

// Organization is one relief directory entry.
type Organization struct {
	ID                int    `json:"id"`
	OrganizationName  string `json:"organization_name"`
	OrgType           string `json:"org_type"`
	DonationDetails   string `json:"donation_details"`
	MonetaryDonations string `json:"monetary_donations"`
	DryRations        string `json:"dry_rations"`
	Volunteer         string `json:"volunteer"`
	OverseasDonations string `json:"overseas_donations"`
	ItemDropOff       string `json:"item_drop_off"`
	OrgLink           string `json:"org_link"`
	Category          string `json:"category"`
}

// Directory is the full grouped directory response.
type Directory struct {
	Success            bool                      `json:"success"`
	Data               map[string][]Organization `json:"data"`
	TotalOrganizations int                       `json:"total_organizations"`
	LastUpdated        string                    `json:"last_updated"`
	GoogleSheetURL     string                    `json:"google_sheet_url"`
	Categories         []string                  `json:"categories"`
	Message            string                    `json:"message,omitempty"`
}

// CategoryResult is the response for one category.
type CategoryResult struct {
	Category       string         `json:"category"`
	Organizations  []Organization `json:"organizations"`
	Count          int            `json:"count"`
	GoogleSheetURL string         `json:"google_sheet_url"`
}

// SearchResult is the response for a free-text search.
type SearchResult struct {
	Query          string         `json:"query"`
	Results        []Organization `json:"results"`
	Count          int            `json:"count"`
	GoogleSheetURL string         `json:"google_sheet_url"`
}

// categoryOrder fixes the grouping order in responses.
var categoryOrder = []string{"general", "government", "ngo", "media", "non_profit", "volunteer", "business"}

// Service loads, caches, and queries the directory CSV.
type Service struct {
	path   string
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	mu       sync.Mutex
	cached   *Directory
	loadedAt time.Time
}

// NewService creates a directory service reading from path with the given
// cache TTL.
func NewService(path string, ttl time.Duration, logger *slog.Logger) *Service {
	return NewServiceWithClock(path, ttl, logger, clockwork.NewRealClock())
}

// NewServiceWithClock is NewService with an injectable clock for tests.
func NewServiceWithClock(path string, ttl time.Duration, logger *slog.Logger, clock clockwork.Clock) *Service {
	return &Service{path: path, ttl: ttl, clock: clock, logger: logger}
}

// Directory returns the grouped directory, re-reading the CSV when the
// cache has expired or forceRefresh is set.
func (s *Service) Directory(forceRefresh bool) (Directory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !forceRefresh && s.cached != nil && now.Sub(s.loadedAt) < s.ttl {
		return *s.cached, nil
	}

	orgs, err := loadCSV(s.path)
	if err != nil {
		s.logger.Warn("relief directory load failed", "path", s.path, "error", err)
		if s.cached != nil {
			return *s.cached, nil
		}
		return Directory{}, err
	}

	dir := groupDirectory(orgs, now)
	s.cached = &dir
	s.loadedAt = now
	return dir, nil
}

// ByCategory returns organizations in one category.
func (s *Service) ByCategory(category string) (CategoryResult, error) {
	dir, err := s.Directory(false)
	if err != nil {
		return CategoryResult{}, err
	}

	key := strings.ToLower(category)
	orgs, ok := dir.Data[key]
	if !ok {
		return CategoryResult{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownCategory, category, strings.Join(dir.Categories, ", "))
	}
	return CategoryResult{
		Category:       category,
		Organizations:  orgs,
		Count:          len(orgs),
		GoogleSheetURL: SheetURL,
	}, nil
}

// Search finds organizations whose name, type, drop-off point, or donation
// details contain the query, case-insensitively.
func (s *Service) Search(query string) (SearchResult, error) {
	dir, err := s.Directory(false)
	if err != nil {
		return SearchResult{}, err
	}

	q := strings.ToLower(query)
	results := []Organization{}
	for _, cat := range dir.Categories {
		for _, org := range dir.Data[cat] {
			searchable := strings.ToLower(strings.Join([]string{
				org.OrganizationName, org.OrgType, org.ItemDropOff, org.DonationDetails,
			}, " "))
			if strings.Contains(searchable, q) {
				results = append(results, org)
			}
		}
	}
	return SearchResult{
		Query:          query,
		Results:        results,
		Count:          len(results),
		GoogleSheetURL: SheetURL,
	}, nil
}

// loadCSV parses the directory export. The sheet starts with a disclaimer
// row; the real header is the row whose first cell mentions "Related
// Organization".
func loadCSV(path string) ([]Organization, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open relief directory: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse relief directory: %w", err)
		}
		rows = append(rows, row)
	}

	headerIdx := 0
	for i, row := range rows {
		if len(row) > 0 && strings.Contains(row[0], "Related Organization") {
			headerIdx = i
			break
		}
	}
	if headerIdx+1 >= len(rows) {
		return nil, nil
	}

	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var orgs []Organization
	for i, row := range rows[headerIdx+1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		orgType := cell(row, 1)
		orgs = append(orgs, Organization{
			ID:                i + 1,
			OrganizationName:  cell(row, 0),
			OrgType:           orgType,
			DonationDetails:   cell(row, 2),
			MonetaryDonations: cell(row, 3),
			DryRations:        cell(row, 4),
			Volunteer:         cell(row, 5),
			OverseasDonations: cell(row, 6),
			ItemDropOff:       cell(row, 7),
			OrgLink:           cell(row, 8),
			Category:          categorize(orgType),
		})
	}
	return orgs, nil
}

// categorize maps free-text organization types to directory categories.
func categorize(orgType string) string {
	t := strings.ToLower(orgType)
	switch {
	case strings.Contains(t, "government"):
		return "government"
	case strings.Contains(t, "ngo"):
		return "ngo"
	case strings.Contains(t, "media"):
		return "media"
	case strings.Contains(t, "non-profit"), strings.Contains(t, "nonprofit"):
		return "non_profit"
	case strings.Contains(t, "volunteer"):
		return "volunteer"
	case strings.Contains(t, "private"), strings.Contains(t, "business"):
		return "business"
	default:
		return "general"
	}
}

func groupDirectory(orgs []Organization, now time.Time) Directory {
	grouped := map[string][]Organization{}
	for _, org := range orgs {
		grouped[org.Category] = append(grouped[org.Category], org)
	}

	categories := make([]string, 0, len(grouped))
	for _, cat := range categoryOrder {
		if len(grouped[cat]) > 0 {
			categories = append(categories, cat)
		}
	}

	return Directory{
		Success:            true,
		Data:               grouped,
		TotalOrganizations: len(orgs),
		LastUpdated:        now.UTC().Format(time.RFC3339),
		GoogleSheetURL:     SheetURL,
		Categories:         categories,
		Message:            fmt.Sprintf("Loaded %d organizations from local data", len(orgs)),
	}
}
