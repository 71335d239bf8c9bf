package http

import "strconv"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response is the JSON body of every endpoint except /api/dump.
type Response struct {
	Status Status `json:"status,omitempty"`
	Value  string `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewOKResponse answers /health.
func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

// NewSuccessResponse acknowledges a write that returns no value.
func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

// NewValueResponse carries the value read for a key.
func NewValueResponse(value string) Response {
	return Response{Status: StatusSuccess, Value: value}
}

// NewSequenceResponse reports the first sequence number assigned to an
// applied batch.
func NewSequenceResponse(seq uint64) Response {
	return NewValueResponse(strconv.FormatUint(seq, 10))
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
