package exam

// Keyword vocabularies the structured-response grader counts hits for.
// The raw feature carries one "<word>_num" counter per entry.
var (
	structureWords = []string{"firstly", "secondly", "thirdly", "finally", "conclusion"}
	logicWords     = []string{"because", "therefore", "however", "moreover", "example"}
)

// Feature keeps the per-slot fields the report needs
type Feature struct {
	ClarityRatio float64
	FluencyRatio float64
	Pauses       int
	Speed        float64

	StructureHit    []string
	StructureMissed []string
	LogicHit        []string
	LogicMissed     []string
}

// Summarize projects a raw feature payload to report fields by question
// type. Read-aloud (type 1) takes the delivery metrics as is, structured
// response (type 3) partitions the keyword vocabularies into hit and
// missed lists. Other types derive their report from the score alone, no
// feature is needed.
func Summarize(raw map[string]float64, qType int) Feature {
	var res Feature
	switch qType {
	case 1:
		res.ClarityRatio = raw["clr_ratio"]
		res.FluencyRatio = raw["ftl_ratio"]
		res.Pauses = int(raw["interval_num"])
		res.Speed = raw["speed"]
	case 3:
		res.StructureHit, res.StructureMissed = partitionHits(raw, structureWords)
		res.LogicHit, res.LogicMissed = partitionHits(raw, logicWords)
	}
	return res
}

func partitionHits(raw map[string]float64, words []string) (hit, missed []string) {
	for _, w := range words {
		if raw[w+"_num"] > 0 {
			hit = append(hit, w)
		} else {
			missed = append(missed, w)
		}
	}
	return hit, missed
}
