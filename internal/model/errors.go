package model

import (
	"errors"
)

var (
	ErrNoMarker   = errors.New("no url marker")
	ErrInvalidURL = errors.New("invalid url")
)
