package occupancy

const secondsPerHour = 3600

// DurationHours returns whole billable hours between start and end.
// Partial hours round up and an ended claim bills at least one hour.
// An active claim (end == 0) bills zero.
func DurationHours(startedUnixUTC int64, endedUnixUTC int64) int64 {
	if endedUnixUTC == 0 {
		return 0
	}
	elapsed := endedUnixUTC - startedUnixUTC
	if elapsed <= 0 {
		return 1
	}
	hours := elapsed / secondsPerHour
	if elapsed%secondsPerHour != 0 {
		hours++
	}
	if hours < 1 {
		return 1
	}
	return hours
}

// TotalPrice multiplies billable hours by an hourly rate.
func TotalPrice(hours int64, pricePerHour AmountCents) AmountCents {
	return AmountCents(hours * pricePerHour.Int64())
}
