package embedding

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn := tok.Tokenize("a cat on the sofa", 10)
	if len(ids) != 10 || len(attn) != 10 {
		t.Fatalf("len(ids)=%d len(attn)=%d", len(ids), len(attn))
	}
	if ids[0] != startOfText {
		t.Errorf("expected start token, got %d", ids[0])
	}
	if ids[6] != endOfText || attn[6] != 1 {
		t.Errorf("expected end token at 6, got %d (mask %d)", ids[6], attn[6])
	}
	if attn[7] != 0 || ids[7] != endOfText {
		t.Errorf("padding: id=%d mask=%d", ids[7], attn[7])
	}
	for i := 1; i < 6; i++ {
		if ids[i] <= 0 || ids[i] >= startOfText {
			t.Errorf("token %d out of range: %d", i, ids[i])
		}
	}
}

func TestSimpleTokenizer_TruncatesLongText(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn := tok.Tokenize("one two three four five six seven", 5)
	if ids[4] != endOfText || attn[4] != 1 {
		t.Errorf("last position should hold end token, got %v", ids)
	}
}

func TestVocabTokenizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	if err := os.WriteFile(path, []byte(`{"cat</w>": 2368, "dog</w>": 1929}`), 0600); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadVocabTokenizer(path)
	if err != nil {
		t.Fatal(err)
	}
	ids, _ := tok.Tokenize("Cat dog zebra", 8)
	if ids[1] != 2368 || ids[2] != 1929 {
		t.Errorf("vocab lookup: %v", ids)
	}
	if ids[3] != int64(HashString("zebra")%startOfText) {
		t.Errorf("fallback id: %d", ids[3])
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b, c.  ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if len(SplitWords("")) != 0 {
		t.Error("empty string should return no words")
	}
}

func TestHashString(t *testing.T) {
	h := HashString("abc")
	if h == 0 {
		t.Error("hash should be non-zero")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}
