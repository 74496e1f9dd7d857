package registry

import "errors"

var (
	// ErrSlugTaken is returned when a routing key or its derived schema
	// name is already in use.
	ErrSlugTaken = errors.New("slug already taken")

	// ErrInvalidSlug is returned for routing keys that are not valid
	// lowercase DNS labels.
	ErrInvalidSlug = errors.New("invalid slug")
)
