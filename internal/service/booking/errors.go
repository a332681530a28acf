package booking

import "errors"

var (
	ErrNotOpen       = errors.New("booking panel is not open")
	ErrSeatUnknown   = errors.New("seat is not part of the schedule")
	ErrSeatBooked    = errors.New("seat is already booked")
	ErrInvalidStatus = errors.New("invalid booking status")
)
