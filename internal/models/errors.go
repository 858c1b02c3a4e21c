package models

import "errors"

// ErrConfiguration marks failures that must abort a run before any evaluation
// starts: a missing or malformed criteria source, or an unusable provider.
var ErrConfiguration = errors.New("configuration error")
