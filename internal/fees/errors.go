package fees

import "errors"

// ErrConfig marks schedule problems: malformed tier tables or a venue/asset
// combination with no matching rule. These are fatal to the request and are
// never retried.
var ErrConfig = errors.New("fee schedule configuration error")

// ErrInvalidInput marks caller mistakes such as negative volumes or leverage.
// The error is deterministic for a given input; there is no transient class
// in this package.
var ErrInvalidInput = errors.New("invalid fee input")
