// Package clock provides the application's single source of time.
//
// Every timestamp this system persists — registration time, login events,
// sentiment entries — is stored in IST (Asia/Kolkata). Routing all "what
// time is it" questions through this package means the zone decision is
// made exactly once, instead of being repeated (and eventually diverging)
// at every call site.
package clock

import (
	"sync"
	"time"
)

var (
	istOnce sync.Once
	ist     *time.Location
)

// IST returns the Asia/Kolkata location.
//
// time.LoadLocation reads the system tzdata, which can be absent on
// minimal container images. IST has had a fixed +05:30 offset since 1945,
// so a FixedZone fallback is exact, not approximate.
func IST() *time.Location {
	istOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Kolkata")
		if err != nil {
			loc = time.FixedZone("IST", 5*3600+30*60)
		}
		ist = loc
	})
	return ist
}

// Now returns the current instant in IST.
func Now() time.Time {
	return time.Now().In(IST())
}
