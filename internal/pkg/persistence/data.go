package persistence

import "time"

type (

	// QuestionReq is one requirement row of a template: which type to pick
	// and either a concrete question ID or empty for "pick by policy"
	QuestionReq struct {
		Type       int    `json:"type"`
		QuestionID string `json:"questionID,omitempty"`
	}

	// Template table
	Template struct {
		ID         string
		Name       string
		Duration   int // seconds for the whole exam
		Questions  []QuestionReq
		Deprecated bool
		Created    time.Time
	}

	// Question pool entry table
	Question struct {
		ID        string
		Type      int
		Index     int
		Text      string
		UsedTimes int64
		Created   time.Time
	}

	// Slot is one question position within an exam, embedded as jsonb
	Slot struct {
		Num        int                `json:"num"`
		QuestionID string             `json:"questionID"`
		Type       int                `json:"type"`
		Text       string             `json:"text"`
		UploadPath string             `json:"uploadPath,omitempty"`
		Status     string             `json:"status"`
		Score      map[string]float64 `json:"score,omitempty"`
		Feature    map[string]float64 `json:"feature,omitempty"`
	}

	// ScoreInfo caches computed dimension averages, filled exactly once
	ScoreInfo struct {
		Quality   float64 `json:"quality"`
		Key       float64 `json:"key"`
		Detail    float64 `json:"detail"`
		Structure float64 `json:"structure"`
		Logic     float64 `json:"logic"`
		Total     float64 `json:"total"`
	}

	// Exam table - the central mutable record
	Exam struct {
		ID          string
		UserID      string
		TemplateID  string
		Slots       []Slot
		CurrentSlot int
		Score       *ScoreInfo
		Started     time.Time
		Expires     time.Time
		Version     int
	}

	// Pretest table - one-question audio check before the real exam
	Pretest struct {
		ID             string
		UserID         string
		Text           string
		UploadPath     string
		Status         string
		RecognizedText string
		Created        time.Time
	}
)
