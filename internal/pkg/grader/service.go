package grader

import (
	"context"
	"fmt"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/vgarvardt/gue/v5"

	"github.com/voxexam/voxexam/internal/pkg/messages"
	"github.com/voxexam/voxexam/internal/pkg/persistence"
	"github.com/voxexam/voxexam/internal/pkg/status"
	"github.com/voxexam/voxexam/internal/pkg/utils"
)

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// DB provides persistence functionality. Only the active store is
// writable, feedback for an already resolved exam is dropped.
type DB interface {
	LoadActiveExam(ctx context.Context, id string) (*persistence.Exam, error)
	UpdateExam(ctx context.Context, ex *persistence.Exam) error
	LoadPretest(ctx context.Context, id string) (*persistence.Pretest, error)
	UpdatePretest(ctx context.Context, p *persistence.Pretest) error
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	MsgSender   MsgSender
	DB          DB
}

// StartWorkerService starts the event queue listener for grading
// pipeline feedback.
// Returns channel for tracking if all jobs are finished.
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Msg("Starting listen for messages")

	wm := gue.WorkMap{
		messages.Grade: utils.CreateHandler(data, handleGrade),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.Grade),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("grade-worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

func handleGrade(ctx context.Context, m *messages.GradeMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Int("slot", m.Slot).Str("status", m.Status).Msg("handling grade")
	if status.From(m.Status) == 0 {
		goapp.Log.Error().Str("status", m.Status).Msg("unknown status, drop")
		return nil
	}
	if m.Pretest {
		return handlePretestGrade(ctx, m, data)
	}
	ex, err := data.DB.LoadActiveExam(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load exam: %w", err)
	}
	if ex == nil {
		goapp.Log.Warn().Str("ID", m.ID).Msg("no active exam, feedback dropped")
		return nil
	}
	if m.Slot < 1 || m.Slot > len(ex.Slots) {
		goapp.Log.Error().Str("ID", m.ID).Int("slot", m.Slot).Msg("no such slot, drop")
		return nil
	}
	slot := &ex.Slots[m.Slot-1]
	if status.From(slot.Status).Terminal() {
		goapp.Log.Warn().Str("ID", m.ID).Int("slot", m.Slot).Msg("slot already graded, drop")
		return nil
	}
	slot.Status = m.Status
	slot.Score = m.Score
	slot.Feature = m.Feature
	if err := data.DB.UpdateExam(ctx, ex); err != nil {
		return fmt.Errorf("can't save exam: %w", err)
	}
	if err := data.MsgSender.SendMessage(ctx, messages.NewStatusMessageFrom(m), messages.StatusChange); err != nil {
		return fmt.Errorf("can't send msg: %w", err)
	}
	if allTerminal(ex.Slots) {
		err := data.MsgSender.SendMessage(ctx, &amessages.InformMessage{
			QueueMessage: amessages.QueueMessage{ID: m.ID},
			Type:         amessages.InformTypeFinished, At: time.Now()}, messages.Inform)
		if err != nil {
			return fmt.Errorf("can't send msg: %w", err)
		}
	}
	goapp.Log.Info().Str("ID", m.ID).Int("slot", m.Slot).Msg("grade saved")
	return nil
}

func handlePretestGrade(ctx context.Context, m *messages.GradeMessage, data *ServiceData) error {
	p, err := data.DB.LoadPretest(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load pretest: %w", err)
	}
	if p == nil {
		goapp.Log.Warn().Str("ID", m.ID).Msg("no pretest, feedback dropped")
		return nil
	}
	p.Status = m.Status
	p.RecognizedText = m.RecognizedText
	if err := data.DB.UpdatePretest(ctx, p); err != nil {
		return fmt.Errorf("can't save pretest: %w", err)
	}
	if err := data.MsgSender.SendMessage(ctx, messages.NewStatusMessageFrom(m), messages.StatusChange); err != nil {
		return fmt.Errorf("can't send msg: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Msg("pretest grade saved")
	return nil
}

func allTerminal(slots []persistence.Slot) bool {
	for _, s := range slots {
		if !status.From(s.Status).Terminal() {
			return false
		}
	}
	return true
}

func validate(data *ServiceData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	return nil
}
