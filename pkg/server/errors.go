package server

import "errors"

// ErrNoStore is returned by New when no record store is supplied.
var ErrNoStore = errors.New("server requires a record store")
