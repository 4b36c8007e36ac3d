package api_error

// JSONAPIError is the body of every failed response.
type JSONAPIError struct {
	Code         string `json:"code"`
	Msg          string `json:"msg"`
	ErrorDetails string `json:"error_details"`
	// RequestID repeats the X-Request-ID header; for separations it is the job ID
	RequestID string `json:"request_id,omitempty"`
}
