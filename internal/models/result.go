package models

type AnalyzeRequest struct {
	CandidateText string    `json:"candidateText" validate:"required"`
	Job           JobRecord `json:"job" validate:"required"`
}

type CreateRunRequest struct {
	CandidateText string      `json:"candidateText" validate:"required"`
	Jobs          []JobRecord `json:"jobs" validate:"required,min=1"`
}

type CreateRunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

type ProfileUploadResponse struct {
	Filename  string `json:"filename"`
	Text      string `json:"text"`
	PageCount int    `json:"pageCount,omitempty"`
}

type JobsUploadResponse struct {
	Filename string      `json:"filename"`
	Count    int         `json:"count"`
	Columns  []string    `json:"columns"`
	Jobs     []JobRecord `json:"jobs"`
}
