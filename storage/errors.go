package storage

import "errors"

var ErrNotFound = errors.New("record not found")
var ErrForbiddenAccess = errors.New("forbidden access")
var ErrStoreUnavailable = errors.New("store unavailable")
var ErrUserExists = errors.New("user already exists")
