package clean

import (
	"context"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"go.uber.org/multierr"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// ExamsDB loads exams for audio cleanup
type ExamsDB interface {
	LoadExam(ctx context.Context, id string) (*persistence.Exam, error)
	LoadPretest(ctx context.Context, id string) (*persistence.Pretest, error)
}

// Filer removes files from the audio store
type Filer interface {
	Delete(ctx context.Context, name string) error
}

// AudioCleaner drops the answer recordings of an exam or pretest.
// Audio paths are kept inside the record, so the record is loaded first.
type AudioCleaner struct {
	db    ExamsDB
	filer Filer
}

// NewAudioCleaner creates the audio cleanup job
func NewAudioCleaner(db ExamsDB, filer Filer) (*AudioCleaner, error) {
	if db == nil {
		return nil, fmt.Errorf("no DB")
	}
	if filer == nil {
		return nil, fmt.Errorf("no filer")
	}
	return &AudioCleaner{db: db, filer: filer}, nil
}

// Clean removes all audio files of the record
func (c *AudioCleaner) Clean(ctx context.Context, id string) error {
	ex, err := c.db.LoadExam(ctx, id)
	if err != nil {
		return fmt.Errorf("can't load exam: %w", err)
	}
	if ex != nil {
		var res error
		for _, s := range ex.Slots {
			if s.UploadPath == "" {
				continue
			}
			if err := c.filer.Delete(ctx, s.UploadPath); err != nil {
				res = multierr.Append(res, fmt.Errorf("can't delete %s: %w", s.UploadPath, err))
			}
		}
		if res != nil {
			return res
		}
		goapp.Log.Info().Str("ID", id).Msg("audio cleaned")
		return nil
	}
	p, err := c.db.LoadPretest(ctx, id)
	if err != nil {
		return fmt.Errorf("can't load pretest: %w", err)
	}
	if p == nil {
		goapp.Log.Warn().Str("ID", id).Msg("no record, nothing to clean")
		return nil
	}
	if p.UploadPath != "" {
		if err := c.filer.Delete(ctx, p.UploadPath); err != nil {
			return fmt.Errorf("can't delete %s: %w", p.UploadPath, err)
		}
	}
	goapp.Log.Info().Str("ID", id).Msg("audio cleaned")
	return nil
}
