package conversation

import (
	"strings"

	"github.com/curasoft/emr-assist/internal/emr"
)

// MatchPatient picks the first directory entry matching the user-entered
// query: case-insensitive substring of the concatenated first+last name,
// exact registration number, or exact national health identifier. First
// match wins; there is no ranking among multiple matches.
func MatchPatient(patients []emr.Patient, query string) (emr.Patient, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return emr.Patient{}, false
	}
	nameQuery := strings.ToLower(q)

	for _, p := range patients {
		fullName := strings.ToLower(strings.TrimSpace(p.FirstName + " " + p.LastName))
		if fullName != "" && strings.Contains(fullName, nameQuery) {
			return p, true
		}
		if p.PatientID != "" && p.PatientID == q {
			return p, true
		}
		if p.NationalID != "" && p.NationalID == q {
			return p, true
		}
	}
	return emr.Patient{}, false
}
