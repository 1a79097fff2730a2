package mocks

import (
	"context"
	"io"

	"github.com/airenas/async-api/pkg/messages"
	"github.com/stretchr/testify/mock"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// Filer is minio mock
type Filer struct{ mock.Mock }

func (m *Filer) LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error) {
	args := m.Called(ctx, fileName)
	return to[io.ReadSeekCloser](args.Get(0)), args.Error(1)
}

func (m *Filer) Delete(ctx context.Context, fileName string) error {
	args := m.Called(ctx, fileName)
	return args.Error(0)
}

// DB is postgres DB mock
type DB struct{ mock.Mock }

func (m *DB) LoadExam(ctx context.Context, id string) (*persistence.Exam, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Exam](args.Get(0)), args.Error(1)
}
func (m *DB) LoadActiveExam(ctx context.Context, id string) (*persistence.Exam, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Exam](args.Get(0)), args.Error(1)
}
func (m *DB) InsertExam(ctx context.Context, ex *persistence.Exam) error {
	args := m.Called(ctx, ex)
	return args.Error(0)
}
func (m *DB) UpdateExam(ctx context.Context, ex *persistence.Exam) error {
	args := m.Called(ctx, ex)
	return args.Error(0)
}
func (m *DB) MoveExamToHistory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *DB) LoadUserExams(ctx context.Context, userID string) ([]*persistence.Exam, error) {
	args := m.Called(ctx, userID)
	return to[[]*persistence.Exam](args.Get(0)), args.Error(1)
}

func (m *DB) LoadTemplate(ctx context.Context, id string) (*persistence.Template, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Template](args.Get(0)), args.Error(1)
}
func (m *DB) InsertTemplate(ctx context.Context, t *persistence.Template) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}
func (m *DB) UpdateTemplate(ctx context.Context, t *persistence.Template) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *DB) LoadQuestion(ctx context.Context, id string) (*persistence.Question, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Question](args.Get(0)), args.Error(1)
}
func (m *DB) LoadQuestions(ctx context.Context, qType, maxIndex int) ([]*persistence.Question, error) {
	args := m.Called(ctx, qType, maxIndex)
	return to[[]*persistence.Question](args.Get(0)), args.Error(1)
}
func (m *DB) AddQuestionUsage(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *DB) LockEmailTable(ctx context.Context, id, msgType string) error {
	args := m.Called(ctx, id, msgType)
	return args.Error(0)
}
func (m *DB) UnLockEmailTable(ctx context.Context, id, msgType string, val *int) error {
	args := m.Called(ctx, id, msgType, *val)
	return args.Error(0)
}

func (m *DB) InsertPretest(ctx context.Context, p *persistence.Pretest) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *DB) LoadPretest(ctx context.Context, id string) (*persistence.Pretest, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Pretest](args.Get(0)), args.Error(1)
}
func (m *DB) UpdatePretest(ctx context.Context, p *persistence.Pretest) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// Sender is postgres queue mock
type Sender struct{ mock.Mock }

func (m *Sender) SendMessage(ctx context.Context, msg messages.Message, queue string) error {
	args := m.Called(ctx, msg, queue)
	return args.Error(0)
}

// History is profile service history mock
type History struct{ mock.Mock }

func (m *History) GetAnsweredQuestions(ctx context.Context, userID string) (map[string]bool, error) {
	args := m.Called(ctx, userID)
	return to[map[string]bool](args.Get(0)), args.Error(1)
}

func (m *History) GetEmail(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// To converts a recorded mock argument to the given type, nil safe
func To[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}

func to[T interface{}](val interface{}) T {
	return To[T](val)
}
