package exam

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// CreateTemplate registers a new paper blueprint
func (s *Service) CreateTemplate(ctx context.Context, name string, duration int, reqs []persistence.QuestionReq) (string, error) {
	if err := s.validateTemplate(name, duration, reqs); err != nil {
		return "", err
	}
	t := &persistence.Template{ID: uuid.NewString(), Name: name, Duration: duration,
		Questions: reqs, Created: s.now().UTC()}
	if err := s.db.InsertTemplate(ctx, t); err != nil {
		return "", wrapErr(ErrInternal, err)
	}
	goapp.Log.Info().Str("ID", t.ID).Str("name", name).Msg("template created")
	return t.ID, nil
}

// UpdateTemplate edits a blueprint. Already-created exams keep the slots
// they were assembled with, edits affect new assemblies only.
func (s *Service) UpdateTemplate(ctx context.Context, id, name string, duration int, reqs []persistence.QuestionReq) error {
	if id == "" {
		return ErrInvalidParam
	}
	if err := s.validateTemplate(name, duration, reqs); err != nil {
		return err
	}
	t, err := s.db.LoadTemplate(ctx, id)
	if err != nil {
		return wrapErr(ErrInternal, err)
	}
	if t == nil {
		return ErrExamNotExist
	}
	t.Name, t.Duration, t.Questions = name, duration, reqs
	if err := s.db.UpdateTemplate(ctx, t); err != nil {
		return wrapErr(ErrInternal, err)
	}
	return nil
}

// DeprecateTemplate flags the blueprint unusable. Templates are never
// deleted.
func (s *Service) DeprecateTemplate(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidParam
	}
	t, err := s.db.LoadTemplate(ctx, id)
	if err != nil {
		return wrapErr(ErrInternal, err)
	}
	if t == nil {
		return ErrExamNotExist
	}
	if t.Deprecated {
		return nil
	}
	t.Deprecated = true
	if err := s.db.UpdateTemplate(ctx, t); err != nil {
		return wrapErr(ErrInternal, err)
	}
	goapp.Log.Info().Str("ID", id).Msg("template deprecated")
	return nil
}

func (s *Service) validateTemplate(name string, duration int, reqs []persistence.QuestionReq) error {
	if name == "" || duration <= 0 || len(reqs) == 0 {
		return ErrInvalidParam
	}
	for _, r := range reqs {
		if _, ok := s.cfg.Types[r.Type]; !ok {
			return ErrInvalidParam
		}
	}
	return nil
}
