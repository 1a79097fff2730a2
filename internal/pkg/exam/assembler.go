package exam

import (
	"context"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
	"github.com/voxexam/voxexam/internal/pkg/status"
)

// Assemble builds a new exam for the candidate from the template:
// concrete-ID requirements are taken as is, policy requirements pick the
// least used question of the type, preferring entries the candidate has
// neither seen in this paper nor in their history. When the pool runs
// short it falls back first to already-answered questions, then to
// repeats within the same paper, and keeps the chosen fallback tier per
// question type for the rest of the assembly.
func (s *Service) Assemble(ctx context.Context, userID, templateID string) (string, error) {
	defer goapp.Estimate("assemble")()
	if userID == "" || templateID == "" {
		return "", ErrInvalidParam
	}
	tpl, err := s.db.LoadTemplate(ctx, templateID)
	if err != nil {
		return "", wrapErr(ErrInternal, err)
	}
	if tpl == nil || tpl.Deprecated {
		goapp.Log.Error().Str("templateID", templateID).Msg("template not usable")
		return "", ErrInitExamFailed
	}
	if len(tpl.Questions) == 0 {
		return "", ErrInitExamFailed
	}

	selected, err := s.pickQuestions(ctx, userID, tpl)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	ex := &persistence.Exam{
		ID:         uuid.NewString(),
		UserID:     userID,
		TemplateID: templateID,
		Started:    now,
		Expires:    now.Add(time.Duration(tpl.Duration) * time.Second),
	}
	for i, q := range selected {
		ex.Slots = append(ex.Slots, persistence.Slot{Num: i + 1, QuestionID: q.ID,
			Type: q.Type, Text: q.Text, Status: status.Awaiting.String()})
	}
	if err := s.db.InsertExam(ctx, ex); err != nil {
		return "", wrapErr(ErrInternal, err)
	}
	bumpUsage(ctx, s.db, selected)
	goapp.Log.Info().Str("ID", ex.ID).Int("questions", len(ex.Slots)).Msg("exam assembled")
	return ex.ID, nil
}

func (s *Service) pickQuestions(ctx context.Context, userID string, tpl *persistence.Template) ([]*persistence.Question, error) {
	var history map[string]bool
	chosen := map[string]bool{}
	pools := map[int][]*persistence.Question{}
	tactic := map[int]int{} // fallback tier memo per question type
	var res []*persistence.Question

	for _, req := range tpl.Questions {
		if req.QuestionID != "" {
			q, err := s.db.LoadQuestion(ctx, req.QuestionID)
			if err != nil {
				return nil, wrapErr(ErrInternal, err)
			}
			if q == nil {
				goapp.Log.Error().Str("questionID", req.QuestionID).Msg("required question missing")
				return nil, ErrInitExamFailed
			}
			res = append(res, q)
			chosen[q.ID] = true
			continue
		}
		if history == nil {
			h, err := s.history.GetAnsweredQuestions(ctx, userID)
			if err != nil {
				return nil, wrapErr(ErrInternal, err)
			}
			history = h
		}
		pool, ok := pools[req.Type]
		if !ok {
			var err error
			pool, err = s.db.LoadQuestions(ctx, req.Type, s.cfg.MaxPoolIndex)
			if err != nil {
				return nil, wrapErr(ErrInternal, err)
			}
			pools[req.Type] = pool
		}
		q := pickByPolicy(pool, chosen, history, tactic, req.Type)
		if q == nil {
			goapp.Log.Error().Int("type", req.Type).Msg("pool can't satisfy template")
			return nil, ErrInitExamFailed
		}
		res = append(res, q)
		chosen[q.ID] = true
	}
	return res, nil
}

// pickByPolicy scans the usage-ordered pool of one type. Best pick is an
// entry unused both in this paper and in the candidate's history; backup
// tier 1 is the first history repeat, tier 2 the first in-paper repeat.
// A tier once used is preferred directly on later picks of the same type.
func pickByPolicy(pool []*persistence.Question, chosen, history map[string]bool,
	tactic map[int]int, qType int) *persistence.Question {
	var backup1, backup2 *persistence.Question
	for _, q := range pool {
		if chosen[q.ID] {
			if tactic[qType] == 2 {
				return q
			}
			if backup2 == nil {
				backup2 = q
			}
			continue
		}
		if !history[q.ID] {
			return q
		}
		if tactic[qType] == 1 {
			return q
		}
		if backup1 == nil {
			backup1 = q
		}
	}
	if backup1 != nil {
		tactic[qType] = 1
		return backup1
	}
	if backup2 != nil {
		tactic[qType] = 2
		return backup2
	}
	return nil
}

// bumpUsage increments usage of every selected entry once, repeats deduped.
// Counters are advisory, a failed bump does not undo the assembled exam.
func bumpUsage(ctx context.Context, db DB, selected []*persistence.Question) {
	done := map[string]bool{}
	for _, q := range selected {
		if done[q.ID] {
			continue
		}
		done[q.ID] = true
		if err := db.AddQuestionUsage(ctx, q.ID); err != nil {
			goapp.Log.Warn().Err(err).Str("questionID", q.ID).Msg("can't update usage")
		}
	}
}
