package domain

import "errors"

var (
	// ErrRepositoryQuery wraps any failure of the repository client.
	ErrRepositoryQuery = errors.New("repository query failed")

	// ErrMalformedDocument is returned when a document has no usable title or content.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrSuperseded is returned when a response arrives after a newer search replaced the list.
	ErrSuperseded = errors.New("response superseded by a newer request")

	// ErrSessionNotFound is returned by the session registry for unknown or expired ids.
	ErrSessionNotFound = errors.New("feed session not found")
)
