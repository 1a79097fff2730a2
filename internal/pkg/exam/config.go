package exam

// TypeInfo keeps per question type timing and candidate tips
type TypeInfo struct {
	ReadTime   int // seconds to read the prompt
	AnswerTime int // seconds to record the answer
	Tip        string
}

// Config keeps exam engine settings
type Config struct {
	AudioBasedir   string
	PretestBasedir string
	AudioExt       string
	PretestText    string
	MaxPoolIndex   int // entries above are reserved for other use
	Types          map[int]TypeInfo
}

// DefaultConfig returns engine settings matching the production paper types
func DefaultConfig() *Config {
	return &Config{
		AudioBasedir:   "audio",
		PretestBasedir: "audio-test",
		AudioExt:       ".wav",
		PretestText:    "Please read this sentence aloud to check your microphone.",
		MaxPoolIndex:   10000,
		Types: map[int]TypeInfo{
			1: {ReadTime: 30, AnswerTime: 60, Tip: "Read the passage aloud clearly."},
			2: {ReadTime: 60, AnswerTime: 120, Tip: "Listen and retell the main points."},
			3: {ReadTime: 90, AnswerTime: 180, Tip: "Give a structured spoken answer."},
			4: {ReadTime: 30, AnswerTime: 60, Tip: "Answer freely, this part is not scored."},
			5: {ReadTime: 60, AnswerTime: 120, Tip: "Summarize what you heard."},
			6: {ReadTime: 60, AnswerTime: 150, Tip: "Retell the story in your own words."},
		},
	}
}
