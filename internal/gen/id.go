package gen

import "github.com/google/uuid"

// JobID returns a fresh synthetic job id.
func JobID() string {
	return "job-" + uuid.NewString()
}

// ReservationID returns a fresh synthetic reservation id.
func ReservationID() string {
	return "res-" + uuid.NewString()
}
