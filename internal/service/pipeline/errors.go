package pipeline

import (
	"errors"

	"github.com/sandevgo/chorus/internal/core"
)

// UserMessage turns a run error into a short explanation for the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrCanceled):
		return "The request was canceled."
	case errors.Is(err, core.ErrRunTimeout), errors.Is(err, core.ErrTimeout):
		return "Sorry, this took too long and was stopped. Please try again, perhaps with a narrower question."
	case errors.Is(err, core.ErrServiceUnavailable):
		return "A required service is unavailable right now. Check that the model and search services are running."
	case errors.Is(err, core.ErrSessionBusy):
		return "Still working on your previous message. Wait for it to finish or cancel it."
	case errors.Is(err, core.ErrParse):
		return "The model returned an answer I could not read. Please try again."
	default:
		return "Something went wrong while answering. Please try again."
	}
}
