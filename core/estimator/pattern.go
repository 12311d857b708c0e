package estimator

// HoursPerDay is the number of buckets in the daily profile.
const HoursPerDay = 24

// hourlyUsagePattern is the fraction of charge points active at each hour of
// a typical day under an arrival multiplier of 1.0.
var hourlyUsagePattern = [HoursPerDay]float64{
	0.05, 0.03, 0.02, 0.02, 0.03, 0.05, // 00:00 - 06:00
	0.10, 0.15, 0.25, 0.30, 0.40, 0.45, // 06:00 - 12:00
	0.50, 0.55, 0.60, 0.65, 0.70, 0.75, // 12:00 - 18:00
	0.80, 0.60, 0.40, 0.25, 0.15, 0.08, // 18:00 - 24:00
}

// UsagePattern returns a copy of the reference hourly usage pattern.
func UsagePattern() [HoursPerDay]float64 { return hourlyUsagePattern }
