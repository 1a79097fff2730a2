package exam

import (
	"context"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
	"github.com/voxexam/voxexam/internal/pkg/status"
)

// Result is the final score and report of a resolved exam
type Result struct {
	ExamID string
	Score  persistence.ScoreInfo
	Report *Report
}

// Record is one row of a candidate's exam history listing
type Record struct {
	ExamID     string
	TemplateID string
	Started    time.Time
	Score      persistence.ScoreInfo
}

// GetResult resolves the exam lazily: all slots terminal, or expiry with
// nothing still handling, triggers scoring. The score is computed once
// and cached on the record, later calls return the cached value. While
// grading is still possible the call signals ErrInProcessing - retry
// later, not a failure.
func (s *Service) GetResult(ctx context.Context, examID string) (*Result, error) {
	defer goapp.Estimate("getResult")()
	if examID == "" {
		return nil, ErrInvalidParam
	}
	ex, err := s.db.LoadExam(ctx, examID)
	if err != nil {
		return nil, wrapErr(ErrInternal, err)
	}
	if ex == nil {
		return nil, ErrExamNotExist
	}

	handling, allDone, scores, feats, types := collectSlots(ex.Slots)
	expired := !s.now().UTC().Before(ex.Expires)
	if !allDone && (!expired || handling) {
		return nil, ErrInProcessing
	}

	if ex.Score == nil {
		score := Aggregate(scores, types)
		ex.Score = &score
		if err := s.db.UpdateExam(ctx, ex); err != nil {
			return nil, wrapErr(ErrInternal, err)
		}
		if err := s.db.MoveExamToHistory(ctx, ex.ID); err != nil {
			return nil, wrapErr(ErrInternal, err)
		}
		goapp.Log.Info().Str("ID", ex.ID).Float64("total", score.Total).Msg("exam resolved")
	}
	return &Result{ExamID: ex.ID, Score: *ex.Score,
		Report: BuildReport(*ex.Score, feats, scores, types)}, nil
}

// GetRecords lists the candidate's resolved exams. Exams still in
// processing are filtered out, never reported as failures.
func (s *Service) GetRecords(ctx context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, ErrInvalidParam
	}
	exams, err := s.db.LoadUserExams(ctx, userID)
	if err != nil {
		return nil, wrapErr(ErrInternal, err)
	}
	res := []Record{}
	for _, ex := range exams {
		if ex.Score == nil {
			continue
		}
		res = append(res, Record{ExamID: ex.ID, TemplateID: ex.TemplateID,
			Started: ex.Started, Score: *ex.Score})
	}
	return res, nil
}

// collectSlots extracts scoring inputs. Unfinished and errored slots get
// the zero score vector and an empty feature, they still count toward
// dimension divisors.
func collectSlots(slots []persistence.Slot) (handling, allDone bool, scores []map[string]float64, feats []Feature, types []int) {
	allDone = true
	for _, slot := range slots {
		types = append(types, slot.Type)
		st := status.From(slot.Status)
		if st == status.Finished && slot.Score != nil {
			scores = append(scores, slot.Score)
			feats = append(feats, Summarize(slot.Feature, slot.Type))
		} else {
			scores = append(scores, zeroScore())
			feats = append(feats, Feature{})
		}
		if st == status.Handling {
			handling = true
		}
		if !st.Terminal() {
			allDone = false
		}
	}
	return handling, allDone, scores, feats, types
}
