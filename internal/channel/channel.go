// Package channel holds the closed vocabulary of acquisition channels
// ("procedencia") shared by leads, patients and appointments.
package channel

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Channel string

const (
	MarketingDigital Channel = "leads-marketing-digital"
	MarketingOffline Channel = "leads-marketing-offline"
	MedicalVisit     Channel = "visita-medica"
	Renewal          Channel = "renovacion"
	Referral         Channel = "recomendacion"
	Website          Channel = "sitio-web"
	ManualBooking    Channel = "agendamiento-manual"
)

// Default is used for empty or unrecognized input.
const Default = MedicalVisit

var all = []Channel{
	MarketingDigital,
	MarketingOffline,
	MedicalVisit,
	Renewal,
	Referral,
	Website,
	ManualBooking,
}

var labels = map[Channel]string{
	MarketingDigital: "Leads Marketing Digital",
	MarketingOffline: "Leads Marketing Offline",
	MedicalVisit:     "Visita Médica",
	Renewal:          "Renovación",
	Referral:         "Recomendación",
	Website:          "Sitio Web",
	ManualBooking:    "Agendamiento Manual",
}

// aliases maps folded spellings (lowercase, no diacritics, "-" separators)
// to canonical values.
var aliases = map[string]Channel{
	"leads-marketing-digital": MarketingDigital,
	"marketing-digital":       MarketingDigital,
	"leads-marketing-offline": MarketingOffline,
	"marketing-offline":       MarketingOffline,
	"visita-medica":           MedicalVisit,
	"renovacion":              Renewal,
	"recomendacion":           Referral,
	"sitio-web":               Website,
	"pagina-web":              Website,
	"agendamiento-manual":     ManualBooking,
}

// All returns the canonical channels in display order.
func All() []Channel {
	out := make([]Channel, len(all))
	copy(out, all)
	return out
}

func (c Channel) Valid() bool {
	_, ok := labels[c]
	return ok
}

// Label is the human readable name, e.g. "Visita Médica".
func (c Channel) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return labels[Default]
}

// Parse folds raw and looks it up. ok is false when raw is not a known
// spelling, in which case Default is returned.
func Parse(raw string) (Channel, bool) {
	if c, found := aliases[fold(raw)]; found {
		return c, true
	}
	return Default, false
}

// Normalize always returns one of the canonical channels.
func Normalize(raw string) Channel {
	c, _ := Parse(raw)
	return c
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
