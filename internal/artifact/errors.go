package artifact

import "errors"

var (
	ErrNotFound = errors.New("artifact not found")
	ErrCapacity = errors.New("artifact store capacity exceeded")
)
