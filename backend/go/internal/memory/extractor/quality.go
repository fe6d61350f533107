package extractor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minFactRunes = 10

var interrogatives = []string{
	"qué ", "cómo ", "cuál ", "cuáles ", "cuándo ", "dónde ", "quién ", "quiénes ",
	"cuánto ", "cuántos ", "cuánta ", "cuántas ", "por qué ",
	"what ", "how ", "why ", "who ", "which ", "where ",
}

var courtesy = []string{
	"el usuario saluda", "saluda a minerva", "es educado", "es educada", "es amable",
	"agradece", "da las gracias", "se despide", "pide ayuda", "quiere saber",
	"pregunta por", "pregunta sobre", "hace una pregunta",
	"the user is polite", "the user greets", "the user thanks", "the user says hello",
	"the user asks",
}

// markers are whole words or phrases. A trailing "*" matches any word that
// starts with the stem.
var markers = []string{
	// nombre
	"llama", "llamaba", "nombre", "apellido", "name is",
	// ubicación
	"vive", "vivía", "vivió", "reside", "nació", "ciudad", "país", "pais", "barrio", "lives in",
	// ocupación
	"trabaja", "trabajaba", "trabajó", "profesión", "profesion", "estudia", "estudió", "works as", "works at",
	// edad
	"años", "edad", "cumpleaños", "years old",
	// preferencias
	"prefiere", "le gusta", "le gustan", "le encanta", "le encantan", "favorit*",
	"odia", "no le gusta", "likes", "prefers",
	// aficiones
	"hobby", "afición", "aficion", "practica", "juega", "colecciona",
}

var (
	wordRe       = regexp.MustCompile(`[\p{L}\p{N}]+`)
	reLocation   = regexp.MustCompile(`(^|\s)[Ee]n\s+\p{Lu}`)
	reOrigin     = regexp.MustCompile(`(^|\s)es\s+de\s+\p{Lu}`)
	reOccupation = regexp.MustCompile(`(?i)(^|\s)es\s+(un\s+|una\s+)?(ingenier|médic|medic|abogad|doctor|profesor|desarrollador|programador|diseñador|enfermer|contador|arquitect|estudiante|periodista|psicólog|chef|músic)`)
)

// words lower-cases text and rejoins its words with single spaces, padded on
// both ends so terms can be matched as " term ".
func words(text string) string {
	return " " + strings.Join(wordRe.FindAllString(strings.ToLower(text), -1), " ") + " "
}

func hasTerm(joined string, terms []string) bool {
	for _, t := range terms {
		if stem, ok := strings.CutSuffix(t, "*"); ok {
			if strings.Contains(joined, " "+stem) {
				return true
			}
			continue
		}
		if strings.Contains(joined, " "+t+" ") {
			return true
		}
	}
	return false
}

// Check reports whether text is a concrete, durable fact about the user and,
// when it is not, why it was rejected.
func Check(text string) (bool, string) {
	t := strings.TrimSpace(text)
	if utf8.RuneCountInString(t) < minFactRunes {
		return false, "too short"
	}
	lower := strings.ToLower(t)
	if strings.ContainsAny(t, "?¿") {
		return false, "question"
	}
	for _, w := range interrogatives {
		if strings.HasPrefix(lower, w) {
			return false, "question"
		}
	}
	joined := words(t)
	if hasTerm(joined, courtesy) {
		return false, "generic courtesy"
	}
	if hasTerm(joined, markers) {
		return true, ""
	}
	if reLocation.MatchString(t) || reOrigin.MatchString(t) || reOccupation.MatchString(t) {
		return true, ""
	}
	return false, "no concrete detail"
}

// Validate is Check without the reason.
func Validate(text string) bool {
	ok, _ := Check(text)
	return ok
}

// Normalize lower-cases text and collapses whitespace. Two facts with the
// same normalized text are the same fact.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
