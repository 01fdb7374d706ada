package types

import "fmt"

// Response is returned by every command-surface operation.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Ok builds a successful response.
func Ok(format string, args ...interface{}) Response {
	return Response{Success: true, Message: fmt.Sprintf(format, args...)}
}

// Fail builds a failed response.
func Fail(format string, args ...interface{}) Response {
	return Response{Success: false, Message: fmt.Sprintf(format, args...)}
}

// TrackerAcceptance is one tracker's answer to a trajectory submission.
type TrackerAcceptance struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TrajectoryResponse adds validation and per-tracker results to Response.
type TrajectoryResponse struct {
	Response
	Modified bool                `json:"modified"`
	Trackers []TrackerAcceptance `json:"trackers"`
}

// ValidationResponse answers validate-reference requests for a list.
type ValidationResponse struct {
	Response
	Valid []bool `json:"valid"`
}
