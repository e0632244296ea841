package pipeline

import "errors"

var errTerminalState = errors.New("pipeline: invalid state transition")
