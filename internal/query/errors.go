package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// GenericFailure is shown for every failure without a structured API error.
const GenericFailure = "Error querying Log Analytics"

// QueryError is a non-success response. Body is kept for later inspection.
type QueryError struct {
	Status    int
	Body      []byte
	RequestID string
}

func (e *QueryError) Error() string {
	if api, ok := e.APIError(); ok {
		return fmt.Sprintf("query rejected (%d): %s: %s", e.Status, api.Code, api.Message)
	}
	return fmt.Sprintf("query failed (%d %s)", e.Status, http.StatusText(e.Status))
}

// APIError is the structured error body. Inner errors nest arbitrarily deep.
type APIError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Inner   *APIError `json:"innererror,omitempty"`
}

type apiErrorEnvelope struct {
	Error *APIError `json:"error"`
}

// APIError parses the structured body of an HTTP 400. Any other status, an
// empty body or one that does not parse reports ok == false.
func (e *QueryError) APIError() (*APIError, bool) {
	if e.Status != http.StatusBadRequest || len(e.Body) == 0 {
		return nil, false
	}
	var env apiErrorEnvelope
	if err := json.Unmarshal(e.Body, &env); err != nil || env.Error == nil {
		return nil, false
	}
	if env.Error.Code == "" && env.Error.Message == "" {
		return nil, false
	}
	return env.Error, true
}

// IsRejected reports whether err carries a structured API rejection.
func IsRejected(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		_, ok := qe.APIError()
		return ok
	}
	return false
}

// Failure is the display form of a failed execution.
type Failure struct {
	Code    string
	Message string
	Cause   *Failure
}

// Depth counts the failure and its causes.
func (f *Failure) Depth() int {
	n := 0
	for cur := f; cur != nil; cur = cur.Cause {
		n++
	}
	return n
}

// Describe maps err to what the shell shows: the structured code, message
// and inner chain for a rejected query, the generic message for anything else.
func Describe(err error) *Failure {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		if api, ok := qe.APIError(); ok {
			return fromAPIError(api)
		}
	}
	return &Failure{Message: GenericFailure}
}

func fromAPIError(api *APIError) *Failure {
	if api == nil {
		return nil
	}
	return &Failure{Code: api.Code, Message: api.Message, Cause: fromAPIError(api.Inner)}
}
