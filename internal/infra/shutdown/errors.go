package shutdown

import "errors"

// ErrTerminating is returned at startup when the termination file is present.
var ErrTerminating = errors.New("termination requested")
