package cache

import "errors"

// ErrInvalidConfig is returned by constructors given unusable parameters.
var ErrInvalidConfig = errors.New("cache: invalid configuration")
