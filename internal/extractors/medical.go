package extractors

import "strings"

// medicalTerms is the dictionary scanned when tagging chunks. Terms are
// matched case-insensitively as whole words.
var medicalTerms = []string{
	"allergy", "anemia", "antibiotic", "asthma", "biopsy", "blood",
	"cancer", "cardiac", "cholesterol", "chronic", "diabetes",
	"diagnosis", "dosage", "fracture", "glucose", "hemoglobin",
	"hypertension", "infection", "inflammation", "injection", "insulin",
	"lesion", "medication", "mri", "oncology", "pathology",
	"prescription", "radiology", "surgery", "symptom", "therapy",
	"tumor", "ultrasound", "vaccine", "x-ray", "xray",
}

// MedicalKeywords returns the dictionary terms present in the text, in
// dictionary order, each at most once. Used to tag chunks for filtering
// and source display.
func MedicalKeywords(text string) []string {
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '-'
	}) {
		words[field] = struct{}{}
	}

	var found []string
	for _, term := range medicalTerms {
		if _, ok := words[term]; ok {
			found = append(found, term)
		}
	}
	return found
}
