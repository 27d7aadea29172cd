package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that a user with the same
	// email, username or phone number already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrGroupNotFound indicates that the referenced group does not exist
	ErrGroupNotFound = errors.New("group not found")
)
