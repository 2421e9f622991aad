package quiz

import "errors"

var ErrNotFound = errors.New("not found")
