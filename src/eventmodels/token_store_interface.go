package eventmodels

type ITokenStore interface {
	Get() (*TokenState, error)
	Set(state *TokenState) error
	Clear() error
}
