package models

import (
	"strings"
	"unicode"

	dErrors "registrar/pkg/domain-errors"
)

// School levels accepted on the registration form.
const (
	LevelPrimary      = "primary"
	LevelIntermediate = "intermediate"
	LevelSecondary    = "secondary"
	LevelUniversity   = "university"
)

// Payment plans accepted on the registration form.
const (
	PaymentFull         = "full"
	PaymentInstallments = "installments"
)

// minUniversityAge is the youngest age allowed to declare university level.
const minUniversityAge = 15

// Applicant is the student detail captured by the registration form.
type Applicant struct {
	FullName         string `json:"full_name"`
	Age              int    `json:"age"`
	School           string `json:"school,omitempty"`
	Level            string `json:"level"`
	Address          string `json:"address,omitempty"`
	Phone            string `json:"phone"`
	WhatsApp         string `json:"whatsapp,omitempty"`
	Email            string `json:"email"`
	GuardianName     string `json:"guardian_name,omitempty"`
	GuardianRelation string `json:"guardian_relation,omitempty"`
	GuardianPhone    string `json:"guardian_phone,omitempty"`
	GuardianWhatsApp string `json:"guardian_whatsapp,omitempty"`
	GuardianEmail    string `json:"guardian_email"`
	PaymentPlan      string `json:"payment_plan,omitempty"`
}

// Normalize trims whitespace and canonicalizes enumerations.
func (a *Applicant) Normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.School = strings.TrimSpace(a.School)
	a.Level = strings.ToLower(strings.TrimSpace(a.Level))
	a.Address = strings.TrimSpace(a.Address)
	a.Phone = strings.TrimSpace(a.Phone)
	a.WhatsApp = strings.TrimSpace(a.WhatsApp)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.GuardianName = strings.TrimSpace(a.GuardianName)
	a.GuardianRelation = strings.ToLower(strings.TrimSpace(a.GuardianRelation))
	a.GuardianPhone = strings.TrimSpace(a.GuardianPhone)
	a.GuardianWhatsApp = strings.TrimSpace(a.GuardianWhatsApp)
	a.GuardianEmail = strings.ToLower(strings.TrimSpace(a.GuardianEmail))
	a.PaymentPlan = strings.ToLower(strings.TrimSpace(a.PaymentPlan))
}

// Validate applies the form rules. Course age bounds are checked against the
// catalog at decision time, not here.
func (a *Applicant) Validate() error {
	if a.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "applicant full_name is required")
	}
	if a.Age <= 0 {
		return dErrors.New(dErrors.CodeValidation, "applicant age must be positive")
	}
	switch a.Level {
	case LevelPrimary, LevelIntermediate, LevelSecondary, LevelUniversity:
	default:
		return dErrors.New(dErrors.CodeValidation, "applicant level must be one of primary, intermediate, secondary, university")
	}
	if a.Level == LevelUniversity && a.Age < minUniversityAge {
		return dErrors.New(dErrors.CodeValidation, "university level requires age 15 or older")
	}
	if !isEmail(a.Email) {
		return dErrors.New(dErrors.CodeValidation, "applicant email is invalid")
	}
	if !isPhone(a.Phone) {
		return dErrors.New(dErrors.CodeValidation, "applicant phone must be 9 to 12 digits")
	}
	if a.WhatsApp != "" && !isPhone(a.WhatsApp) {
		return dErrors.New(dErrors.CodeValidation, "applicant whatsapp must be 9 to 12 digits")
	}
	if a.GuardianPhone != "" && !isPhone(a.GuardianPhone) {
		return dErrors.New(dErrors.CodeValidation, "guardian phone must be 9 to 12 digits")
	}
	if a.GuardianWhatsApp != "" && !isPhone(a.GuardianWhatsApp) {
		return dErrors.New(dErrors.CodeValidation, "guardian whatsapp must be 9 to 12 digits")
	}
	if !isEmail(a.GuardianEmail) {
		return dErrors.New(dErrors.CodeValidation, "guardian email is invalid")
	}
	switch a.PaymentPlan {
	case "", PaymentFull, PaymentInstallments:
	default:
		return dErrors.New(dErrors.CodeValidation, "payment_plan must be full or installments")
	}
	return nil
}

// isEmail requires an "@" with a "." somewhere after it.
func isEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func isPhone(s string) bool {
	if len(s) < 9 || len(s) > 12 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
