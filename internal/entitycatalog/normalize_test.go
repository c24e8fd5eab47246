package entitycatalog

import "testing"

func TestMutationNotationVariants_HGVSProteinToInformal(t *testing.T) {
	variants := mutationNotationVariants("p.Gly12Asp")
	if !contains(variants, "G12D") {
		t.Errorf("expected informal variant G12D, got %v", variants)
	}
}

func TestMutationNotationVariants_InformalToHGVSProtein(t *testing.T) {
	variants := mutationNotationVariants("G12D")
	if !contains(variants, "p.GlyAsp") && !contains(variants, "p.Gly12Asp") {
		t.Errorf("expected an HGVS-protein variant, got %v", variants)
	}
}

func TestMutationNotationVariants_UnrecognizedTextPassesThrough(t *testing.T) {
	variants := mutationNotationVariants("rs121913529")
	if !contains(variants, "rs121913529") {
		t.Errorf("expected input preserved verbatim, got %v", variants)
	}
}

func TestNormalizeAlias_CaseInsensitive(t *testing.T) {
	if normalizeAlias("  BRAF  ") != "braf" {
		t.Errorf("expected normalized alias 'braf', got %q", normalizeAlias("  BRAF  "))
	}
}

func TestIsCollisionProne_KnownCollisions(t *testing.T) {
	for _, sym := range []string{"CAT", "SET", "MAX"} {
		if !IsCollisionProne(sym) {
			t.Errorf("expected %q to be flagged as collision-prone", sym)
		}
	}
	if IsCollisionProne("BRAF") {
		t.Errorf("did not expect BRAF to be flagged as collision-prone")
	}
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
