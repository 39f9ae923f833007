package bridge

import (
	"errors"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

// EventFrame is one websocket message forwarded to a connected page.
type EventFrame struct {
	Event eventmodels.EventName `json:"event"`
	Data  interface{}           `json:"data,omitempty"`
}

func newEventFrame(name eventmodels.EventName, data interface{}) *EventFrame {
	if err, ok := data.(error); ok {
		var apiErr *eventmodels.ApiError
		if errors.As(err, &apiErr) {
			data = apiErr
		} else {
			data = eventmodels.NewApiError(0, "internal", err.Error(), nil)
		}
	}

	return &EventFrame{
		Event: name,
		Data:  data,
	}
}
