package eventmodels

import "fmt"

var (
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrInvalidEventName  = fmt.Errorf("invalid event name")
	ErrInvalidNamespace  = fmt.Errorf("invalid namespace")
	ErrNamespaceTaken    = fmt.Errorf("namespace already registered for event")
	ErrInvalidCallback   = fmt.Errorf("invalid callback")
	ErrNoAccountSelected = fmt.Errorf("no account selected")
	ErrTradingDisabled   = fmt.Errorf("trading is not enabled")
	ErrNoCandles         = fmt.Errorf("no candles returned")
)
