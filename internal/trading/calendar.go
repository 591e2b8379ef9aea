package trading

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// micBySuffix maps common exchange suffixes to ISO 10383 MIC codes. Bare
// symbols are treated as NYSE listings.
var micBySuffix = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".MI": "xmil",
	".MC": "xmad",
	".SW": "xswx",
	".TO": "xtse",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
	".SS": "xshg",
	".SZ": "xshe",
}

// DefaultMIC is used when a symbol carries no recognized exchange suffix.
const DefaultMIC = "xnys"

// Calendar answers trading-day and session questions for one market.
//
// When the underlying holiday calendar for a MIC is unavailable the Calendar
// degrades to a plain Mon-Fri 09:30-16:00 New York session, which over-counts
// holidays as trading days but never skips a real session.
type Calendar struct {
	cal *calendar.Calendar
	loc *time.Location
}

// New returns the calendar for the given MIC code.
func New(mic string) *Calendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar(DefaultMIC)
	}
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &Calendar{loc: loc}
	}
	return &Calendar{cal: cal, loc: cal.Loc}
}

// ForSymbol returns the calendar for the market a symbol trades on,
// resolved by its exchange suffix.
func ForSymbol(symbol string) *Calendar {
	if i := strings.LastIndex(symbol, "."); i >= 0 {
		if mic, ok := micBySuffix[symbol[i:]]; ok {
			return New(mic)
		}
	}
	return New(DefaultMIC)
}

// IsTradingDay reports whether the market holds a session on the day
// containing t, evaluated in the market's local time.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

// IsOpenAt reports whether the market session includes the instant t.
func (c *Calendar) IsOpenAt(t time.Time) bool {
	t = t.In(c.loc)
	if c.cal == nil {
		if !c.IsTradingDay(t) {
			return false
		}
		h, m := t.Hour(), t.Minute()
		return (h > 9 || (h == 9 && m >= 30)) && h < 16
	}
	return c.cal.IsOpen(t)
}
