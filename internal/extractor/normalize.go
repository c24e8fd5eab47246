package extractor

import "regexp"

// informalMutationPattern matches informal short mutation notation, mirroring
// entitycatalog's own informalPattern so the extractor can normalize a
// mention to HGVS-protein before emitting it (§4.4: "HGVS regex normalizer
// converts informal mutation mentions to canonical HGVS-protein").
var informalMutationPattern = regexp.MustCompile(`^[A-Za-z]\d+[A-Za-z*]$`)

var hgvsProteinMutationPattern = regexp.MustCompile(`(?i)^p\.[A-Za-z]{3}\d+([A-Za-z]{3}|\*)$`)

var hgvsCodingMutationPattern = regexp.MustCompile(`(?i)^c\.\d+[ACGT]>[ACGT]$`)

var rsIDPattern = regexp.MustCompile(`(?i)^rs\d+$`)

// looksLikeMutation reports whether text matches any recognized mutation
// notation family, used to gate the HGVS normalizer and mutation-type
// mentions that the automaton alone would not classify correctly from
// free text.
func looksLikeMutation(text string) bool {
	return informalMutationPattern.MatchString(text) ||
		hgvsProteinMutationPattern.MatchString(text) ||
		hgvsCodingMutationPattern.MatchString(text) ||
		rsIDPattern.MatchString(text)
}
