package app

import "errors"

// ErrUnknownToken is returned for a token the engine does not manage.
var ErrUnknownToken = errors.New("dscd: unknown token")
