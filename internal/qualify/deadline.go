package qualify

import "time"

// OverallDeadline is the production batch deadline for n companies: five
// minutes each, at least ten minutes and at most two hours.
func OverallDeadline(n int) time.Duration {
	return DefaultOptions().Deadline(n)
}

// Deadline returns clamp(n*PerCompany, MinDeadline, MaxDeadline).
func (o Options) Deadline(n int) time.Duration {
	d := time.Duration(n) * o.PerCompany
	return min(max(d, o.MinDeadline), o.MaxDeadline)
}
