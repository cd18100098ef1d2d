// Package catalog serves the read-only course catalog.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/filmforge/academy/internal/platform/apperr"
)

// Course categories with a defined skills mapping.
const (
	CategoryPreProduction  = "Pre-Production"
	CategoryProduction     = "Production"
	CategoryPostProduction = "Post-Production"
	CategoryDistribution   = "Distribution"
	CategoryBusiness       = "Business"
)

// Course is a catalog entry.
type Course struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Level         string  `json:"level"`
	DurationHours float64 `json:"duration_hours"`
	RelatedTool   string  `json:"related_tool,omitempty"`
	IsFeatured    bool    `json:"is_featured"`
	OrderIndex    int     `json:"order_index"`
}

// Filter narrows a catalog listing. Zero fields match everything.
type Filter struct {
	Category     string
	Level        string
	RelatedTool  string
	FeaturedOnly bool
	Search       string
}

var ErrCourseNotFound = apperr.NotFound("course not found")

// Store reads and writes catalog rows.
type Store interface {
	ListCourses(ctx context.Context) ([]Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	UpsertCourse(ctx context.Context, c Course) error
}

// Service answers catalog queries.
type Service struct {
	store Store
	fold  cases.Caser
}

// NewService creates a catalog service over store.
func NewService(store Store) *Service {
	return &Service{store: store, fold: cases.Fold()}
}

// List returns courses matching f, ordered by order_index then title.
func (s *Service) List(ctx context.Context, f Filter) ([]Course, error) {
	all, err := s.store.ListCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	out := make([]Course, 0, len(all))
	for _, c := range all {
		if s.matches(c, f) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// Featured returns the featured courses.
func (s *Service) Featured(ctx context.Context) ([]Course, error) {
	return s.List(ctx, Filter{FeaturedOnly: true})
}

// Get returns one course or ErrCourseNotFound.
func (s *Service) Get(ctx context.Context, id string) (Course, error) {
	if strings.TrimSpace(id) == "" {
		return Course{}, ErrCourseNotFound
	}
	return s.store.GetCourse(ctx, id)
}

func (s *Service) matches(c Course, f Filter) bool {
	if f.FeaturedOnly && !c.IsFeatured {
		return false
	}
	if !s.equalFold(f.Category, c.Category) || !s.equalFold(f.Level, c.Level) || !s.equalFold(f.RelatedTool, c.RelatedTool) {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		q = s.fold.String(q)
		return strings.Contains(s.fold.String(c.Title), q) ||
			strings.Contains(s.fold.String(c.Description), q)
	}
	return true
}

func (s *Service) equalFold(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || s.fold.String(want) == s.fold.String(got)
}
