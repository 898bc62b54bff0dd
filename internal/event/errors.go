package event

import "errors"

// ErrMalformedFrame classifies ingress payloads that cannot become a Frame.
// Such messages are logged and dropped, never fatal.
var ErrMalformedFrame = errors.New("malformed event frame")
