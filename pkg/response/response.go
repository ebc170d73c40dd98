package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Warning    string      `json:"warning,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// SuccessWithWarning returns a success response carrying a non-fatal warning,
// used when the primary write succeeded but a follow-up step did not.
func SuccessWithWarning(statusCode int, data interface{}, warning string) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
		Warning:    warning,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}
