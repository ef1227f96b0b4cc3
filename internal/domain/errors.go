package domain

import "errors"

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrListingNotFound    = errors.New("listing not found")
	ErrImageNotFound      = errors.New("image not found")
	ErrForbidden          = errors.New("not the owner")
	ErrNoImages           = errors.New("listing needs at least one image")
	ErrUnsupportedImage   = errors.New("unsupported image type")
	ErrImageTooLarge      = errors.New("image too large")
)
