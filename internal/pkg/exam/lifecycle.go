package exam

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
	"github.com/voxexam/voxexam/internal/pkg/status"
)

// QuestionInfo is what the candidate gets for one slot
type QuestionInfo struct {
	Num        int
	Type       int
	Text       string
	ReadTime   int
	AnswerTime int
	Tip        string
	IsLast     bool
	Duration   int // total exam seconds
	Remaining  int // seconds till expiry, may be <= 0
}

// GetQuestionInfo serves the slot's question content and timing.
// Moves the slot to question_fetched and the advisory current-slot
// pointer to num. Any slot may be requested, the pointer is bookkeeping,
// not a gate.
func (s *Service) GetQuestionInfo(ctx context.Context, examID string, num int) (*QuestionInfo, error) {
	defer goapp.Estimate("getQuestionInfo")()
	if examID == "" || num < 1 {
		return nil, ErrInvalidParam
	}
	ex, err := s.db.LoadExam(ctx, examID)
	if err != nil {
		return nil, wrapErr(ErrInternal, err)
	}
	if ex == nil {
		return nil, ErrExamNotExist
	}
	if num > len(ex.Slots) {
		return nil, ErrExamFinished
	}
	slot := &ex.Slots[num-1]
	if status.From(slot.Status) == status.Awaiting {
		slot.Status = status.QuestionFetched.String()
	}
	ex.CurrentSlot = num
	if err := s.db.UpdateExam(ctx, ex); err != nil {
		return nil, wrapErr(ErrInternal, err)
	}

	ti := s.cfg.Types[slot.Type]
	res := &QuestionInfo{Num: num, Type: slot.Type, Text: slot.Text,
		ReadTime: ti.ReadTime, AnswerTime: ti.AnswerTime, Tip: ti.Tip,
		IsLast:   num == len(ex.Slots),
		Duration: int(ex.Expires.Sub(ex.Started) / time.Second),
	}
	res.Remaining = int(ex.Expires.Sub(s.now().UTC()) / time.Second)
	return res, nil
}

// GetUploadPath issues the answer upload path for the slot. A path once
// issued is reused, a retry gets the identical value.
func (s *Service) GetUploadPath(ctx context.Context, examID, userID string, num int) (string, error) {
	defer goapp.Estimate("getUploadPath")()
	if examID == "" || userID == "" {
		return "", ErrInvalidParam
	}
	ex, err := s.db.LoadExam(ctx, examID)
	if err != nil {
		return "", wrapErr(ErrInternal, err)
	}
	if ex == nil {
		return "", ErrExamNotExist
	}
	if num < 1 || num > len(ex.Slots) {
		return "", ErrGetQuestionFailed
	}
	slot := &ex.Slots[num-1]
	if slot.UploadPath != "" {
		return slot.UploadPath, nil
	}
	slot.UploadPath = s.uploadPath(s.cfg.AudioBasedir, userID)
	if st := status.From(slot.Status); !st.Terminal() && st != status.Handling {
		slot.Status = status.URLFetched.String()
	}
	if err := s.db.UpdateExam(ctx, ex); err != nil {
		return "", wrapErr(ErrInternal, err)
	}
	return slot.UploadPath, nil
}

// StartPretest creates a microphone check: one prompt and an upload path
// under the test directory. Recognition status is written back by the
// pipeline.
func (s *Service) StartPretest(ctx context.Context, userID string) (*persistence.Pretest, error) {
	defer goapp.Estimate("startPretest")()
	if userID == "" {
		return nil, ErrInvalidParam
	}
	p := &persistence.Pretest{
		ID:         uuid.NewString(),
		UserID:     userID,
		Text:       s.cfg.PretestText,
		UploadPath: s.uploadPath(s.cfg.PretestBasedir, userID),
		Status:     status.URLFetched.String(),
		Created:    s.now().UTC(),
	}
	if err := s.db.InsertPretest(ctx, p); err != nil {
		return nil, wrapErr(ErrInternal, err)
	}
	return p, nil
}

// GetPretest returns the pretest with whatever recognition result the
// pipeline has written so far
func (s *Service) GetPretest(ctx context.Context, id string) (*persistence.Pretest, error) {
	if id == "" {
		return nil, ErrInvalidParam
	}
	p, err := s.db.LoadPretest(ctx, id)
	if err != nil {
		return nil, wrapErr(ErrInternal, err)
	}
	if p == nil {
		return nil, ErrExamNotExist
	}
	return p, nil
}

// GetAudioPath returns the slot's recorded answer path for download
func (s *Service) GetAudioPath(ctx context.Context, examID string, num int) (string, error) {
	if examID == "" {
		return "", ErrInvalidParam
	}
	ex, err := s.db.LoadExam(ctx, examID)
	if err != nil {
		return "", wrapErr(ErrInternal, err)
	}
	if ex == nil {
		return "", ErrExamNotExist
	}
	if num < 1 || num > len(ex.Slots) || ex.Slots[num-1].UploadPath == "" {
		return "", ErrGetQuestionFailed
	}
	return ex.Slots[num-1].UploadPath, nil
}

// uploadPath builds {basedir}/{date}/{userID}/{unix}r{100-999}{ext}
func (s *Service) uploadPath(basedir, userID string) string {
	now := s.now()
	return fmt.Sprintf("%s/%s/%s/%dr%d%s", basedir, now.Format("2006-01-02"), userID,
		now.Unix(), 100+rand.Intn(900), s.cfg.AudioExt)
}
