package schedules

import "errors"

var (
	ErrNoRoutes     = errors.New("bus has no routes")
	ErrUnknownRoute = errors.New("unknown route")
)
