package hierarchy

import "errors"

var (
	ErrPathNotFound   = errors.New("hierarchy: path not found")
	ErrSignalNotFound = errors.New("hierarchy: signal id not declared")
	ErrNoCurrent      = errors.New("hierarchy: relative path with no current module")
)
