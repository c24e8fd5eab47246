package extractor

import "strings"

// gazetteer lists oncology-specific abbreviations that are not themselves
// canonical entity aliases but imply one. Each entry maps an abbreviation
// to the entity type it most often disambiguates to. ExtractAndStore does
// not consult it: mentions come only from the dictionary automaton and the
// mutation-notation tokens, and no stored mention carries TagGazetteer.
var gazetteer = map[string]string{
	"tki":   "Compound",  // tyrosine kinase inhibitor, class-level mention
	"mab":   "Compound",  // monoclonal antibody suffix
	"nsclc": "CancerType",
	"pdac":  "CancerType",
	"ccrcc": "CancerType",
	"gbm":   "CancerType",
	"tnbc":  "CancerType",
	"crc":   "CancerType",
	"mss":   "CancerType",
	"msi":   "CancerType",
}

// gazetteerHint reports whether text (case-insensitive) is a recognized
// oncology abbreviation and, if so, the entity type it hints at.
func gazetteerHint(text string) (string, bool) {
	t, ok := gazetteer[strings.ToLower(strings.TrimSpace(text))]
	return t, ok
}
