package timeseries

import "time"

// Window is a trailing run of calendar months ending with the month that
// contains End. Only complete months are bucketed. All month boundaries
// are UTC.
type Window struct {
	End    time.Time `json:"end"`
	Months int       `json:"months"`
}

// NewWindow returns the window of months calendar months ending with the
// last complete month at now. The month containing now counts as complete
// only on its last day. A non-positive months falls back to
// DefaultWindowMonths.
func NewWindow(now time.Time, months int) Window {
	if months <= 0 {
		months = DefaultWindowMonths
	}
	return Window{End: lastCompleteMonth(now), Months: months}
}

// Start returns the first instant of the oldest month.
func (w Window) Start() time.Time {
	return monthStart(w.End).AddDate(0, -(w.Months - 1), 0)
}

// Until returns the exclusive upper bound: the start of the month after End.
func (w Window) Until() time.Time {
	return monthStart(w.End).AddDate(0, 1, 0)
}

// MonthStarts returns the start of every month in the window, oldest first.
func (w Window) MonthStarts() []time.Time {
	start := w.Start()
	out := make([]time.Time, w.Months)
	for i := range out {
		out[i] = start.AddDate(0, i, 0)
	}
	return out
}

// Index returns the position of t's month inside the window.
func (w Window) Index(t time.Time) (int, bool) {
	if t.IsZero() {
		return 0, false
	}
	t = t.UTC()
	start := w.Start()
	if t.Before(start) || !t.Before(w.Until()) {
		return 0, false
	}
	idx := (t.Year()-start.Year())*12 + int(t.Month()) - int(start.Month())
	return idx, idx >= 0 && idx < w.Months
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	_, ok := w.Index(t)
	return ok
}

// Recent returns the window made of the last n months of w.
func (w Window) Recent(n int) Window {
	if n <= 0 || n > w.Months {
		n = w.Months
	}
	return Window{End: w.End, Months: n}
}

// lastCompleteMonth returns a day inside the newest month that has ended by
// now: now's own day on a month's last day, otherwise the last day of the
// previous month.
func lastCompleteMonth(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.AddDate(0, 0, 1).Month() != day.Month() {
		return day
	}
	return monthStart(day).AddDate(0, 0, -1)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
