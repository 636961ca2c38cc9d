package token

import (
	"errors"
	"fmt"
)

// ErrInvalidToken covers every decode failure: bad signature, wrong shape,
// wrong kind, or expiry. External callers see only this.
var ErrInvalidToken = errors.New("invalid token")

// ErrTokenExpired marks the expiry case specifically. It wraps
// ErrInvalidToken, so errors.Is(err, ErrInvalidToken) holds for it too.
var ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
