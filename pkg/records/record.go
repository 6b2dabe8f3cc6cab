package records

import "time"

// Record is one stored row. Bands line up with Category.Bands.
type Record struct {
	Category *Category
	Date     *time.Time
	State    string
	District string
	Pincode  string
	Bands    []int
}

// Total is the sum of the record's count bands. It is never stored.
func (r *Record) Total() int {
	total := 0
	for _, v := range r.Bands {
		total += v
	}
	return total
}
