package gateway

import (
	"errors"
	"fmt"
)

// StatusError is raised for a non-2xx webhook or status-endpoint response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway: HTTP %d", e.Code)
}

// Explain maps a send/fetch failure to a user-facing explanation. Transport
// failures get a generic connectivity message; HTTP failures map by status.
func Explain(err error) string {
	var se *StatusError
	if !errors.As(err, &se) {
		return "Could not reach the workflow engine. Check your connection and webhook URL."
	}
	switch {
	case se.Code == 401 || se.Code == 403:
		return "The workflow engine rejected the request. Check your API key."
	case se.Code == 404:
		return "Webhook not found. Check the webhook URL and that the workflow is active."
	case se.Code >= 500:
		return "The workflow engine reported a server error. Check the workflow for failures."
	default:
		return fmt.Sprintf("The workflow engine returned an unexpected status (%d).", se.Code)
	}
}
