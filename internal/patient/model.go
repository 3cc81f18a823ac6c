package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient is the subset of the patient record the automation engine
// reads. Full CRUD lives in the clinic management API.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DNI       string     `json:"dni,omitempty"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	IsLead    bool       `json:"is_lead"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// FullName returns "First Last", trimming absent parts.
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// NormalizeDigits strips everything but digits from a phone identifier.
// Sender identifiers arrive in forms like "+54 9 11 5555-0101" or
// "5491155550101@s.whatsapp.net".
func NormalizeDigits(phone string) string {
	if at := strings.IndexByte(phone, '@'); at >= 0 {
		phone = phone[:at]
	}
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// MatchSuffix returns the trailing digits used for phone matching.
// Country and area prefixes vary between the address book and the
// gateway, so the last 8 digits are the stable part.
func MatchSuffix(phone string) string {
	digits := NormalizeDigits(phone)
	if len(digits) <= 8 {
		return digits
	}
	return digits[len(digits)-8:]
}
