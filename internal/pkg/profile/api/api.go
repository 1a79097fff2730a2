package api

// UserInfo is the candidate profile record served by the profile service
type UserInfo struct {
	ID              string   `json:"id"`
	Email           string   `json:"email,omitempty"`
	QuestionHistory []string `json:"questionHistory,omitempty"`
}
