package router

import (
	"fmt"
	"strings"
	"time"
)

var (
	weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	months   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
		"agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// SpanishDate formats t as "jueves 16 de enero de 2025".
func SpanishDate(t time.Time) string {
	return fmt.Sprintf("%s %d de %s de %d", weekdays[t.Weekday()], t.Day(), months[t.Month()-1], t.Year())
}

// TemporalBlock describes now for the model: the date, the weekday, the time
// and the dates of the next seven days. It is rebuilt on every turn.
func TemporalBlock(now time.Time) string {
	var b strings.Builder
	b.WriteString("CONTEXTO TEMPORAL:\n")
	fmt.Fprintf(&b, "- Hoy es %s.\n", SpanishDate(now))
	fmt.Fprintf(&b, "- Hora actual: %s.\n", now.Format("15:04"))
	b.WriteString("- Próximos días:")
	for i := 1; i <= 7; i++ {
		d := now.AddDate(0, 0, i)
		fmt.Fprintf(&b, "\n  - %s %s", weekdays[d.Weekday()], d.Format("02/01/2006"))
	}
	return b.String()
}
