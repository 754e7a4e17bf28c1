package gen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobIDHasPrefixAndIsUnique(t *testing.T) {
	a, b := JobID(), JobID()
	assert.True(t, strings.HasPrefix(a, "job-"))
	assert.NotEqual(t, a, b)
}

func TestReservationIDHasPrefixAndIsUnique(t *testing.T) {
	a, b := ReservationID(), ReservationID()
	assert.True(t, strings.HasPrefix(a, "res-"))
	assert.NotEqual(t, a, b)
}
