package types

import "errors"

var (
	ErrMalformedRequest = errors.New("malformed analysis request")
	ErrUpstream         = errors.New("upstream unreachable")
)

// WafError carries an enforcement outcome that must surface as an HTTP error
// at the boundary (rate limit, lockout, block).
type WafError struct {
	StatusCode int                 `json:"code"`
	Message    string              `json:"message"`
	Err        error               `json:"-"`
	Headers    map[string][]string `json:"-"`
}

func (e *WafError) Error() string {
	return e.Message
}

func (e *WafError) Unwrap() error {
	return e.Err
}
