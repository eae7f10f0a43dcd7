// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrValidation indicates a value failed structural validation.
var ErrValidation = errors.New("validation failed")
