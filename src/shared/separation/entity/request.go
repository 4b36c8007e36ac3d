package separationentity

const SuccessStatus = "success"

type SeparationRequest struct {
	Filename  string `json:"filename"`
	ModelName string `json:"model_name"`
	// TwoStems isolates a single stem against everything else, e.g. "vocals"
	TwoStems string `json:"two_stems,omitempty"`
}

type StemDownload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Result struct {
	Status       string         `json:"status"`
	JobID        string         `json:"job_id"`
	OutputFolder string         `json:"output_folder"`
	Stems        []string       `json:"stems"`
	Downloads    []StemDownload `json:"downloads,omitempty"`
}
