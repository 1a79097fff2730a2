package messages

import (
	amessages "github.com/airenas/async-api/pkg/messages"
)

const (
	st = "VOX/"
	// Grade queue name - grading pipeline feedback in
	Grade = st + "Grade"
	// StatusChange queue name - slot state changed, push to subscribers
	StatusChange = st + "StatusChange"
	// Inform queue name - report ready, mail the candidate
	Inform = st + "Inform"
)

// GradeMessage is the grading pipeline's feedback for one answer.
// For pretests Slot is 0 and RecognizedText carries the ASR output.
type GradeMessage struct {
	amessages.QueueMessage
	Slot           int                `json:"slot,omitempty"`
	Pretest        bool               `json:"pretest,omitempty"`
	Status         string             `json:"status"`
	Score          map[string]float64 `json:"score,omitempty"`
	Feature        map[string]float64 `json:"feature,omitempty"`
	RecognizedText string             `json:"recognizedText,omitempty"`
}

// StatusMessage notifies about a slot state change
type StatusMessage struct {
	amessages.QueueMessage
	Slot   int    `json:"slot,omitempty"`
	Status string `json:"status"`
}

// NewStatusMessageFrom builds the push notification for a grade event
func NewStatusMessageFrom(m *GradeMessage) *StatusMessage {
	return &StatusMessage{QueueMessage: m.QueueMessage, Slot: m.Slot, Status: m.Status}
}
