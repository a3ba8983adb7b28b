package conversation

import (
	"sort"
	"strings"

	"github.com/curasoft/emr-assist/internal/emr"
)

// specialtyTaxonomy maps each specialty category to its sub-specialties,
// mirroring the categories the staff directory is tagged with.
var specialtyTaxonomy = map[string][]string{
	"Medical Specialties": {
		"Cardiologist",
		"Dermatologist",
		"Endocrinologist",
		"Gastroenterologist",
		"Neurologist",
		"Pulmonologist",
	},
	"Surgical Specialties": {
		"General Surgeon",
		"Orthopedic Surgeon",
		"Neurosurgeon",
		"Vascular Surgeon",
	},
	"Primary Care": {
		"General Practitioner",
		"Family Medicine",
		"Internal Medicine",
	},
	"Women & Child Health": {
		"Gynecologist",
		"Obstetrician",
		"Pediatrician",
	},
}

// Categories returns the specialty categories in stable order.
func Categories() []string {
	out := make([]string, 0, len(specialtyTaxonomy))
	for c := range specialtyTaxonomy {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SubSpecialties returns the sub-specialties for a category, or nil when
// the category is unknown.
func SubSpecialties(category string) []string {
	subs, ok := specialtyTaxonomy[category]
	if !ok {
		return nil
	}
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// RoleClassifier decides whether a staff record is clinician-equivalent
// for booking purposes. The predicate is externally defined; DoctorLike is
// the default.
type RoleClassifier func(emr.StaffRecord) bool

var doctorLikeRoles = map[string]struct{}{
	"doctor":               {},
	"consultant":           {},
	"surgeon":              {},
	"specialist":           {},
	"general practitioner": {},
}

// DoctorLike reports whether the record's role counts as a bookable
// clinician. Staff whose role does not match are excluded from doctor
// selection regardless of specialty.
func DoctorLike(s emr.StaffRecord) bool {
	_, ok := doctorLikeRoles[strings.ToLower(strings.TrimSpace(s.Role))]
	return ok
}
