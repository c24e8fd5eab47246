package document

import "testing"

func TestFuse_PrefersChunkRankedHighInBothIndexes(t *testing.T) {
	lex := []lexicalHit{{chunkID: "a", paperID: "p1"}, {chunkID: "b", paperID: "p2"}}
	vec := []VectorHit{{ChunkID: "a", Similarity: 0.9}, {ChunkID: "c", Similarity: 0.8}}

	results := fuse(lex, vec, 10)
	if len(results) == 0 || results[0].ChunkID != "a" {
		t.Fatalf("expected chunk 'a' (present in both indexes) ranked first, got %+v", results)
	}
}

func TestFuse_RespectsK(t *testing.T) {
	lex := []lexicalHit{{chunkID: "a"}, {chunkID: "b"}, {chunkID: "c"}}
	results := fuse(lex, nil, 2)
	if len(results) != 2 {
		t.Fatalf("expected exactly 2 results for k=2, got %d", len(results))
	}
}

func TestFuse_EmptyInputsReturnNoResults(t *testing.T) {
	results := fuse(nil, nil, 10)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestHammingDistance(t *testing.T) {
	if hammingDistance(0b1010, 0b1010) != 0 {
		t.Errorf("expected identical signatures to have distance 0")
	}
	if hammingDistance(0b1010, 0b1011) != 1 {
		t.Errorf("expected single-bit difference to have distance 1")
	}
}
