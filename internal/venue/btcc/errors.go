package btcc

import (
	"errors"

	"main/pkg/exception"
)

// isVenueReject reports whether an error is a venue business rejection, as
// opposed to a transport or authentication failure.
func isVenueReject(err error) bool {
	return errors.Is(err, exception.ErrInResponseError)
}
