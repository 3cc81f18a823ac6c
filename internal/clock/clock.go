// Package clock provides the clinic-local time source used by all
// eligibility window math, so engines can be tested against fixed instants.
package clock

import "time"

// Clock reports the current time in the clinic's local timezone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// LocalClock is a Clock bound to a fixed *time.Location.
type LocalClock struct {
	loc *time.Location
}

// NewLocal builds a LocalClock for an IANA timezone name.
// Falls back to UTC if the timezone is invalid or empty.
func NewLocal(timezone string) *LocalClock {
	return &LocalClock{loc: LoadLocation(timezone)}
}

// LoadLocation resolves an IANA timezone name, falling back to UTC.
func LoadLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *LocalClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *LocalClock) Location() *time.Location {
	return c.loc
}

// Fixed returns a Clock frozen at t. Intended for tests.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}

func (c fixedClock) Location() *time.Location {
	return c.t.Location()
}
