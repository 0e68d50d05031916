package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Service    string
	StatusCode int
	// Name is the provider's machine-readable error name, when it sent one.
	Name    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s returned status %d (%s): %s", e.Service, e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// upstreamError covers both REST errors ({"name","message"}) and OAuth
// errors ({"error","error_description"}).
type upstreamError struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns it as a *StatusError.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", service, resp.StatusCode, err)
	}

	se := &StatusError{Service: service, StatusCode: resp.StatusCode, Message: string(body)}
	var ue upstreamError
	if json.Unmarshal(body, &ue) == nil {
		switch {
		case ue.Name != "":
			se.Name, se.Message = ue.Name, ue.Message
		case ue.Error != "":
			se.Name, se.Message = ue.Error, ue.ErrorDescription
		}
	}
	return se
}
