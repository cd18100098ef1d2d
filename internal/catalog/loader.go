package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Seed is one course file: the course row plus its quizzes.
type Seed struct {
	ID            string     `yaml:"id" validate:"required"`
	Title         string     `yaml:"title" validate:"required"`
	Description   string     `yaml:"description"`
	Category      string     `yaml:"category" validate:"required"`
	Level         string     `yaml:"level"`
	DurationHours float64    `yaml:"duration_hours" validate:"gte=0"`
	RelatedTool   string     `yaml:"related_tool"`
	Featured      bool       `yaml:"featured"`
	Order         int        `yaml:"order"`
	Quizzes       []QuizSeed `yaml:"quizzes" validate:"dive"`
}

// QuizSeed describes a quiz inside a course file.
type QuizSeed struct {
	ID                       string         `yaml:"id" validate:"required"`
	Title                    string         `yaml:"title" validate:"required"`
	PassingScore             *int           `yaml:"passing_score" validate:"omitempty,gte=0,lte=100"`
	MaxAttempts              *int           `yaml:"max_attempts" validate:"omitempty,gt=0"`
	TimeLimitMinutes         *int           `yaml:"time_limit_minutes" validate:"omitempty,gt=0"`
	RequiredForCertification bool           `yaml:"required_for_certification"`
	Questions                []QuestionSeed `yaml:"questions" validate:"dive"`
}

// QuestionSeed describes one quiz question.
type QuestionSeed struct {
	ID      string   `yaml:"id" validate:"required"`
	Text    string   `yaml:"text" validate:"required"`
	Options []string `yaml:"options"`
	Answer  string   `yaml:"answer" validate:"required"`
	Points  int      `yaml:"points" validate:"gte=0"`
}

// Course converts the seed into a catalog row.
func (s Seed) Course() Course {
	level := s.Level
	if level == "" {
		level = "beginner"
	}
	return Course{
		ID:            s.ID,
		Title:         s.Title,
		Description:   s.Description,
		Category:      s.Category,
		Level:         level,
		DurationHours: s.DurationHours,
		RelatedTool:   s.RelatedTool,
		IsFeatured:    s.Featured,
		OrderIndex:    s.Order,
	}
}

// QuizSeeder stores the quizzes of a seeded course.
type QuizSeeder interface {
	SeedQuiz(ctx context.Context, courseID string, q QuizSeed) error
}

// Loader reads course seed files from a directory tree.
type Loader struct {
	rootDir  string
	validate *validator.Validate
}

// NewLoader creates a loader rooted at dir.
func NewLoader(rootDir string) *Loader {
	return &Loader{rootDir: rootDir, validate: validator.New()}
}

// Load parses every *.yaml / *.yml file under the root. Files that fail to
// parse or validate are skipped with a warning. A missing root yields no
// seeds.
func (l *Loader) Load() ([]Seed, error) {
	if _, err := os.Stat(l.rootDir); os.IsNotExist(err) {
		slog.Warn("catalog directory not found", "path", l.rootDir)
		return nil, nil
	}

	var seeds []Seed
	err := filepath.WalkDir(l.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}

		seed, ok, err := l.loadFile(path)
		if err != nil {
			return err
		}
		if ok {
			seeds = append(seeds, seed)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	sort.Slice(seeds, func(i, j int) bool { return seeds[i].ID < seeds[j].ID })
	return seeds, nil
}

func (l *Loader) loadFile(path string) (Seed, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, false, err
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		slog.Warn("skipping invalid course YAML", "path", path, "error", err)
		return Seed{}, false, nil
	}
	if err := l.validate.Struct(seed); err != nil {
		slog.Warn("skipping incomplete course YAML", "path", path, "error", err)
		return Seed{}, false, nil
	}
	return seed, true, nil
}

// Apply upserts the seeded courses and hands their quizzes to quizzes.
func Apply(ctx context.Context, seeds []Seed, courses Store, quizzes QuizSeeder) error {
	var nQuizzes int
	for _, s := range seeds {
		if err := courses.UpsertCourse(ctx, s.Course()); err != nil {
			return err
		}
		for _, q := range s.Quizzes {
			if err := quizzes.SeedQuiz(ctx, s.ID, q); err != nil {
				return fmt.Errorf("seed quiz %s: %w", q.ID, err)
			}
			nQuizzes++
		}
	}
	slog.Info("catalog loaded", "courses", len(seeds), "quizzes", nQuizzes)
	return nil
}
