package fourstate

import "errors"

var (
	ErrBadState      = errors.New("fourstate: invalid state character")
	ErrPlaneTooShort = errors.New("fourstate: bit plane has too few bytes for the width")
)
