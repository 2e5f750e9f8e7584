package billing

// =============================================================================
// BILLING SCHEDULE - How the annual premium splits into invoices
// =============================================================================

// Schedule controls how many invoices a policy's annual premium is split
// into and how far apart they are billed.
type Schedule string

const (
	ScheduleAnnual    Schedule = "Annual"
	ScheduleTwoPay    Schedule = "Two-Pay"
	ScheduleQuarterly Schedule = "Quarterly"
	ScheduleMonthly   Schedule = "Monthly"

	// ScheduleSemiAnnual is a defined schedule with no generation mapping.
	// Policies can carry it, but the invoice engine cannot bill it; see
	// Terms.
	ScheduleSemiAnnual Schedule = "Semi-Annual"
)

// ScheduleTerms describes how a schedule bills: how many invoices per year
// and how many months apart.
type ScheduleTerms struct {
	Invoices      int
	SpacingMonths int
}

// scheduleTerms maps each billable schedule to its terms. Semi-Annual is
// deliberately absent: it is a valid enum value with no billing terms.
var scheduleTerms = map[Schedule]ScheduleTerms{
	ScheduleAnnual:    {Invoices: 1, SpacingMonths: 12},
	ScheduleTwoPay:    {Invoices: 2, SpacingMonths: 6},
	ScheduleQuarterly: {Invoices: 4, SpacingMonths: 3},
	ScheduleMonthly:   {Invoices: 12, SpacingMonths: 1},
}

// Valid reports whether s is one of the defined schedules (including
// Semi-Annual).
func (s Schedule) Valid() bool {
	if _, ok := scheduleTerms[s]; ok {
		return true
	}
	return s == ScheduleSemiAnnual
}

// Terms returns the billing terms for s. Returns ErrInvalidSchedule for
// anything outside the generation table, Semi-Annual included.
func (s Schedule) Terms() (ScheduleTerms, error) {
	terms, ok := scheduleTerms[s]
	if !ok {
		return ScheduleTerms{}, &InvalidScheduleError{Schedule: s}
	}
	return terms, nil
}

// ParseSchedule validates a raw schedule string.
func ParseSchedule(raw string) (Schedule, error) {
	s := Schedule(raw)
	if !s.Valid() {
		return "", &InvalidScheduleError{Schedule: s}
	}
	return s, nil
}
