package display

import "errors"

var (
	ErrUnsupported = errors.New("display: radix can not represent the value")
	ErrBadRadix    = errors.New("display: unknown radix")
	ErrBadWidth    = errors.New("display: width must be positive")
)
