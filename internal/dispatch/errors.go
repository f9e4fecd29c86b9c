package dispatch

import "errors"

var errNoClassifier = errors.New("no delegated classifier configured")
