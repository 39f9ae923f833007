package eventpubsub

import (
	"github.com/kataras/go-events"

	"github.com/jiaming2012/tradable-embed/src/eventmodels"
)

const (
	activateSuffix   = ".activate"
	deactivateSuffix = ".deactivate"
)

func activateHook(name eventmodels.EventName) events.EventName {
	return events.EventName(string(name) + activateSuffix)
}

func deactivateHook(name eventmodels.EventName) events.EventName {
	return events.EventName(string(name) + deactivateSuffix)
}
