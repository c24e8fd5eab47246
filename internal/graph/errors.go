package graph

import "errors"

// ErrAlreadySuperseded is returned by Supersede when the target fact
// already has a valid_until assigned.
var ErrAlreadySuperseded = errors.New("graph: fact already superseded")
