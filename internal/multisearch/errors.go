package multisearch

import "errors"

var (
	errNilCoordinator = errors.New("multisearch: coordinator must not be nil")
	errDuplicateKey   = errors.New("multisearch: key already registered")
)
