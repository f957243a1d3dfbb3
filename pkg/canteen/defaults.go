package canteen

import (
	"fmt"
	"time"
)

// DefaultStallRent is the monthly rent of the default stalls.
const DefaultStallRent = 5000

// DefaultStalls returns the six vacant stalls a fresh cache starts with.
// Their keys are 1 to 6, below any locally generated key.
func DefaultStalls(now time.Time) []Stall {
	locations := []string{"North Wing", "North Wing", "North Wing", "South Wing", "South Wing", "South Wing"}
	stalls := make([]Stall, 0, len(locations))
	for i, loc := range locations {
		n := i + 1
		stalls = append(stalls, Stall{
			ID:          int64(n),
			StallNumber: fmt.Sprintf("S-%02d", n),
			Name:        fmt.Sprintf("Stall %d", n),
			Location:    loc,
			MonthlyRent: DefaultStallRent,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return stalls
}
