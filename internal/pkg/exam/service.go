package exam

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// DB is the persistence collaborator of the engine.
// All methods are single-document operations, no cross-document
// transaction is assumed.
type DB interface {
	// LoadExam tries the active store first, then history.
	// Returns nil, nil when the ID is unknown in both.
	LoadExam(ctx context.Context, id string) (*persistence.Exam, error)
	InsertExam(ctx context.Context, ex *persistence.Exam) error
	// UpdateExam writes the record back guarded by its version
	UpdateExam(ctx context.Context, ex *persistence.Exam) error
	MoveExamToHistory(ctx context.Context, id string) error
	LoadUserExams(ctx context.Context, userID string) ([]*persistence.Exam, error)

	LoadTemplate(ctx context.Context, id string) (*persistence.Template, error)
	InsertTemplate(ctx context.Context, t *persistence.Template) error
	UpdateTemplate(ctx context.Context, t *persistence.Template) error

	LoadQuestion(ctx context.Context, id string) (*persistence.Question, error)
	// LoadQuestions returns pool entries of the type with index <= maxIndex,
	// ordered by usage count ascending
	LoadQuestions(ctx context.Context, qType, maxIndex int) ([]*persistence.Question, error)
	AddQuestionUsage(ctx context.Context, id string) error

	InsertPretest(ctx context.Context, p *persistence.Pretest) error
	LoadPretest(ctx context.Context, id string) (*persistence.Pretest, error)
}

// HistoryProvider returns IDs of questions the candidate has already answered
type HistoryProvider interface {
	GetAnsweredQuestions(ctx context.Context, userID string) (map[string]bool, error)
}

// Service implements the exam session engine
type Service struct {
	db      DB
	history HistoryProvider
	cfg     *Config

	now func() time.Time
}

// NewService creates the engine instance
func NewService(db DB, history HistoryProvider, cfg *Config) (*Service, error) {
	if db == nil {
		return nil, errors.New("no DB")
	}
	if history == nil {
		return nil, errors.New("no history provider")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{db: db, history: history, cfg: cfg, now: time.Now}, nil
}
