package features

import "errors"

// ErrEncoders reports an unusable encoder set.
var ErrEncoders = errors.New("invalid encoders")
