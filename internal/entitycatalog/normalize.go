package entitycatalog

import (
	"regexp"
	"strings"
)

// normalizeAlias lower-cases and trims an alias for case-insensitive lookup.
func normalizeAlias(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Amino acid three-letter to one-letter map, used to translate HGVS-protein
// notation into its short informal form and back.
var aminoThreeToOne = map[string]byte{
	"Ala": 'A', "Arg": 'R', "Asn": 'N', "Asp": 'D', "Cys": 'C',
	"Gln": 'Q', "Glu": 'E', "Gly": 'G', "His": 'H', "Ile": 'I',
	"Leu": 'L', "Lys": 'K', "Met": 'M', "Phe": 'F', "Pro": 'P',
	"Ser": 'S', "Thr": 'T', "Trp": 'W', "Tyr": 'Y', "Val": 'V',
	"Ter": '*',
}

var aminoOneToThree = func() map[byte]string {
	m := make(map[byte]string, len(aminoThreeToOne))
	for three, one := range aminoThreeToOne {
		m[one] = three
	}
	return m
}()

// hgvsProteinPattern matches "p.Gly12Asp" style HGVS-protein notation.
var hgvsProteinPattern = regexp.MustCompile(`(?i)^p\.([A-Za-z]{3})(\d+)([A-Za-z]{3}|\*)$`)

// informalPattern matches the short informal mutation form "G12D".
var informalPattern = regexp.MustCompile(`^([A-Za-z])(\d+)([A-Za-z*])$`)

// mutationNotationVariants returns every equivalent notation the catalog
// should index for a mutation text, so resolve() can match any family
// (informal, HGVS-protein, HGVS-coding, rsID) to the same entity (§4.1).
func mutationNotationVariants(text string) []string {
	variants := map[string]bool{text: true}

	if m := hgvsProteinPattern.FindStringSubmatch(text); m != nil {
		ref := capitalize(m[1])
		pos := m[2]
		alt := m[3]
		if altOne, ok := aminoThreeToOne[capitalize(alt)]; ok {
			if refOne, ok := aminoThreeToOne[ref]; ok {
				informal := string(refOne) + pos + string(altOne)
				variants[informal] = true
			}
		}
	}

	if m := informalPattern.FindStringSubmatch(text); m != nil {
		ref := strings.ToUpper(m[1])
		pos := m[2]
		alt := strings.ToUpper(m[3])
		if len(ref) == 1 && len(alt) == 1 {
			if refThree, ok := aminoOneToThree[ref[0]]; ok {
				if altThree, ok := aminoOneToThree[alt[0]]; ok {
					hgvs := "p." + refThree + pos + altThree
					variants[hgvs] = true
				}
			}
		}
	}

	out := make([]string, 0, len(variants))
	for v := range variants {
		out = append(out, v)
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
