package exam

import (
	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// ReportItem is one slot's narrative block
type ReportItem struct {
	Num     int      `json:"num"`
	Type    int      `json:"type"`
	Comment string   `json:"comment,omitempty"`

	ClarityRatio float64 `json:"clarityRatio,omitempty"`
	FluencyRatio float64 `json:"fluencyRatio,omitempty"`
	Pauses       int     `json:"pauses,omitempty"`
	Speed        float64 `json:"speed,omitempty"`

	StructureHit    []string `json:"structureHit,omitempty"`
	StructureMissed []string `json:"structureMissed,omitempty"`
	LogicHit        []string `json:"logicHit,omitempty"`
	LogicMissed     []string `json:"logicMissed,omitempty"`
}

// Report is the human-facing result document
type Report struct {
	Score persistence.ScoreInfo `json:"score"`
	Items []ReportItem          `json:"items"`
}

// BuildReport assembles the report from summarized features and slot
// scores. Deterministic, no side effects.
func BuildReport(score persistence.ScoreInfo, feats []Feature, scores []map[string]float64, types []int) *Report {
	res := &Report{Score: score}
	for i, qType := range types {
		item := ReportItem{Num: i + 1, Type: qType}
		switch qType {
		case 1:
			f := feats[i]
			item.ClarityRatio = f.ClarityRatio
			item.FluencyRatio = f.FluencyRatio
			item.Pauses = f.Pauses
			item.Speed = f.Speed
			item.Comment = speechComment(f)
		case 3:
			f := feats[i]
			item.StructureHit = f.StructureHit
			item.StructureMissed = f.StructureMissed
			item.LogicHit = f.LogicHit
			item.LogicMissed = f.LogicMissed
			item.Comment = bandComment(scores[i]["structure"] + scores[i]["logic"])
		case 4:
			item.Comment = "Warm-up question, not scored."
		default:
			item.Comment = bandComment(scores[i]["key"] + scores[i]["detail"])
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func speechComment(f Feature) string {
	if f.ClarityRatio >= 0.9 && f.FluencyRatio >= 0.9 {
		return "Clear and fluent delivery."
	}
	if f.Pauses > 5 {
		return "Delivery interrupted by frequent pauses."
	}
	return "Understandable delivery with room to improve clarity."
}

// bandComment maps a combined two-dimension score (0..200) to a band
func bandComment(v float64) string {
	switch {
	case v >= 160:
		return "Excellent coverage of the main points."
	case v >= 100:
		return "Good answer, some points were missed."
	case v > 0:
		return "The answer touched few of the expected points."
	default:
		return "No assessable answer was recorded."
	}
}
