package status

// Status represents one question slot's grading state
type Status int

const (
	// Awaiting - slot created, question not served yet
	Awaiting Status = iota + 1
	// QuestionFetched - question content was served to the candidate
	QuestionFetched
	// URLFetched - answer upload path was issued
	URLFetched
	// Handling - the grading pipeline took the answer
	Handling
	// Finished - final step, score and feature are present
	Finished
	// Error - grading pipeline failed, slot scores as zero
	Error
)

var (
	statusName = map[Status]string{Awaiting: "awaiting", QuestionFetched: "question_fetched",
		URLFetched: "url_fetched", Handling: "handling", Finished: "finished", Error: "error"}
	nameStatus = map[string]Status{"awaiting": Awaiting, "question_fetched": QuestionFetched,
		"url_fetched": URLFetched, "handling": Handling, "finished": Finished, "error": Error}
)

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string
func From(st string) Status {
	return nameStatus[st]
}

// Terminal returns true if the slot needs no more grading work
func (st Status) Terminal() bool {
	return st == Finished || st == Error
}
