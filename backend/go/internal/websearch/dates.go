package websearch

import (
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var weekdays = map[string]time.Weekday{
	"lunes":     time.Monday,
	"martes":    time.Tuesday,
	"miercoles": time.Wednesday,
	"miércoles": time.Wednesday,
	"jueves":    time.Thursday,
	"viernes":   time.Friday,
	"sabado":    time.Saturday,
	"sábado":    time.Saturday,
	"domingo":   time.Sunday,
}

// Word boundaries are spelled out because \b in RE2 is ASCII only and
// would not fire next to "ú" or "ñ".
const (
	wordStart = `(^|[^\p{L}\p{N}_])`
	wordEnd   = `([^\p{L}\p{N}_]|$)`
	weekdayRE = `(lunes|martes|mi[eé]rcoles|jueves|viernes|s[áa]bado|domingo)`
	modRE     = `(pasado|pr[oó]ximo|ultimo|último)`
)

func word(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + wordStart + pattern + wordEnd)
}

var (
	rePasadoManana = word(`(pasado\s+mañana)`)
	reAnteayer     = word(`(ante\s*ayer)`)
	reFinDeMes     = word(`(fin\s+de\s+mes)`)
	reFinDeSemana  = word(`(fin\s+de\s+semana)`)
	reHoy          = word(`(hoy)`)
	reAyer         = word(`(ayer)`)
	reManana       = word(`(mañana)`)
	reWeekdayMod   = regexp.MustCompile(`(?i)` + wordStart + `((?:el\s+)?` + weekdayRE + `\s+` + modRE + `)` + wordEnd)
	reModWeekday   = regexp.MustCompile(`(?i)` + wordStart + `(` + modRE + `\s+` + weekdayRE + `)` + wordEnd)
)

// DateNormalizer rewrites Spanish relative date expressions ("hoy",
// "pasado mañana", "próximo viernes") into absolute YYYY-MM-DD dates so
// the search engine receives an unambiguous query.
type DateNormalizer struct {
	loc *time.Location
	now func() time.Time
}

// NewDateNormalizer uses loc for "today". A nil loc means time.Local.
func NewDateNormalizer(loc *time.Location) *DateNormalizer {
	if loc == nil {
		loc = time.Local
	}
	return &DateNormalizer{loc: loc, now: time.Now}
}

// Normalize rewrites query relative to the current time.
func (d *DateNormalizer) Normalize(query string) string {
	return d.NormalizeAt(query, d.now().In(d.loc))
}

// NormalizeAt rewrites query relative to base.
func (d *DateNormalizer) NormalizeAt(query string, base time.Time) string {
	day := func(delta int) string { return base.AddDate(0, 0, delta).Format(dateLayout) }
	fixed := func(s string) func([]string) string { return func([]string) string { return s } }

	q := query
	q = replaceWords(q, rePasadoManana, fixed(day(2)))
	q = replaceWords(q, reAnteayer, fixed(day(-2)))
	q = replaceWords(q, reFinDeMes, fixed(time.Date(base.Year(), base.Month()+1, 0, 0, 0, 0, 0, base.Location()).Format(dateLayout)))
	q = replaceWords(q, reFinDeSemana, fixed(day(int(time.Saturday-base.Weekday()+7)%7)))
	q = replaceWords(q, reHoy, fixed(day(0)))
	q = replaceWords(q, reAyer, fixed(day(-1)))
	q = replaceWords(q, reManana, fixed(day(1)))

	// groups: [full, lead, phrase, weekday, modifier, trail]
	q = replaceWords(q, reWeekdayMod, func(m []string) string {
		return nearestWeekday(base, m[3], m[4])
	})
	// groups: [full, lead, phrase, modifier, weekday, trail]
	q = replaceWords(q, reModWeekday, func(m []string) string {
		return nearestWeekday(base, m[4], m[3])
	})
	return q
}

func nearestWeekday(base time.Time, wd, mod string) string {
	target, ok := weekdays[strings.ToLower(wd)]
	if !ok {
		return ""
	}
	cur := base.Weekday()
	var delta int
	switch strings.ToLower(mod) {
	case "proximo", "próximo":
		delta = int(target-cur+7) % 7
		if delta == 0 {
			delta = 7
		}
	default:
		delta = -(int(cur-target+7) % 7)
		if delta == 0 {
			delta = -7
		}
	}
	return base.AddDate(0, 0, delta).Format(dateLayout)
}

// replaceWords swaps the phrase group of every match, keeping the
// surrounding separators. Adjacent matches share a separator, so it runs
// until the text stops changing.
func replaceWords(s string, re *regexp.Regexp, repl func([]string) string) string {
	for i := 0; i < 8; i++ {
		out := re.ReplaceAllStringFunc(s, func(match string) string {
			m := re.FindStringSubmatch(match)
			r := repl(m)
			if r == "" {
				return match
			}
			return m[1] + r + m[len(m)-1]
		})
		if out == s {
			return out
		}
		s = out
	}
	return s
}
