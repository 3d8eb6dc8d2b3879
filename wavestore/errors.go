package wavestore

import "errors"

var (
	ErrNoStore = errors.New("wavestore: no store location, set a data directory or a KV")
	ErrClosed  = errors.New("wavestore: handle is closed")
)
