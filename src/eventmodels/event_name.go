package eventmodels

type EventName string

const (
	EmbedStartingEvent   EventName = "embedStarting"
	EmbedReadyEvent      EventName = "embedReady"
	AccountUpdatedEvent  EventName = "accountUpdated"
	AccountSwitchEvent   EventName = "accountSwitch"
	TokenExpiredEvent    EventName = "tokenExpired"
	TokenWillExpireEvent EventName = "tokenWillExpire"
	ReLoginRequiredEvent EventName = "reLoginRequired"
	ExecutionEvent       EventName = "execution"
	ErrorEvent           EventName = "error"
)

// EventNames lists every event a subscriber may register for, in a fixed order.
var EventNames = []EventName{
	EmbedStartingEvent,
	EmbedReadyEvent,
	AccountUpdatedEvent,
	AccountSwitchEvent,
	TokenExpiredEvent,
	TokenWillExpireEvent,
	ReLoginRequiredEvent,
	ExecutionEvent,
	ErrorEvent,
}

func (n EventName) IsValid() bool {
	switch n {
	case EmbedStartingEvent, EmbedReadyEvent, AccountUpdatedEvent, AccountSwitchEvent, TokenExpiredEvent,
		TokenWillExpireEvent, ReLoginRequiredEvent, ExecutionEvent, ErrorEvent:
		return true
	default:
		return false
	}
}

func (n EventName) String() string {
	return string(n)
}
