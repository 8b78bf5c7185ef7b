package domain

import "errors"

// ErrUserNotAllowed the supplied name is not one of the two tracked users
var ErrUserNotAllowed = errors.New("Only the two configured users may sign in")

// ErrReadOnlyView toggle attempted while viewing the partner's progress
var ErrReadOnlyView = errors.New("Partner progress is read-only")

// ErrUnknownLesson the lesson title is not part of the catalog
var ErrUnknownLesson = errors.New("No such lesson in the catalog")

// ErrNoSession the request carries no active progress session
var ErrNoSession = errors.New("No active session")
