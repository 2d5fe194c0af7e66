package lexical

import (
	"math"
	"testing"
)

func bm25Term(freq, docLen float64, corpusSize int) float64 {
	idf := math.Log(float64(corpusSize+1) / 2)
	return idf * (freq * (k1 + 1)) / (freq + k1*(1-b+b*(docLen/avgDocLen)))
}

func TestScore_EmptyInputs(t *testing.T) {
	doc := []string{"cat", "dog"}
	if got := Score(nil, doc, 10); got != 0 {
		t.Errorf("empty query: got %v, want 0", got)
	}
	if got := Score([]string{"cat"}, nil, 10); got != 0 {
		t.Errorf("empty doc: got %v, want 0", got)
	}
}

func TestScore_NoMatch(t *testing.T) {
	if got := Score([]string{"giraffe"}, []string{"cat", "dog"}, 10); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestScore_SingleTerm(t *testing.T) {
	got := Score([]string{"cat"}, []string{"cat", "dog"}, 3)
	want := bm25Term(1, 2, 3)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScore_TermFrequencySaturates(t *testing.T) {
	one := Score([]string{"cat"}, []string{"cat", "dog", "dog"}, 5)
	two := Score([]string{"cat"}, []string{"cat", "cat", "dog"}, 5)
	if two <= one {
		t.Errorf("higher tf should score higher: tf1=%v tf2=%v", one, two)
	}
	// Saturation: going 1->2 gains more than 2->3.
	three := Score([]string{"cat"}, []string{"cat", "cat", "cat"}, 5)
	if three-two >= two-one {
		t.Errorf("expected diminishing gains: %v %v %v", one, two, three)
	}
}

func TestScore_LongerDocPenalized(t *testing.T) {
	short := []string{"cat", "dog"}
	long := []string{"cat"}
	for i := 0; i < 49; i++ {
		long = append(long, "filler")
	}
	s := Score([]string{"cat"}, short, 5)
	l := Score([]string{"cat"}, long, 5)
	if l >= s {
		t.Errorf("longer doc should score lower: short=%v long=%v", s, l)
	}
}

func TestScore_DuplicateQueryTermsCountOnce(t *testing.T) {
	doc := []string{"cat", "dog"}
	once := Score([]string{"cat"}, doc, 5)
	twice := Score([]string{"cat", "cat"}, doc, 5)
	if once != twice {
		t.Errorf("duplicate query terms must not double-count: %v vs %v", once, twice)
	}
}

func TestScore_MultipleTermsAdd(t *testing.T) {
	doc := []string{"cat", "dog"}
	catOnly := Score([]string{"cat"}, doc, 5)
	both := Score([]string{"cat", "dog"}, doc, 5)
	want := 2 * catOnly // symmetric doc, same per-term contribution
	if math.Abs(both-want) > 1e-12 {
		t.Errorf("got %v, want %v", both, want)
	}
}

func TestScore_IDFDependsOnlyOnCorpusSize(t *testing.T) {
	doc := []string{"cat"}
	small := Score([]string{"cat"}, doc, 2)
	large := Score([]string{"cat"}, doc, 1000)
	if large <= small {
		t.Errorf("larger corpus should raise idf: small=%v large=%v", small, large)
	}
}

func TestScore_CorpusOfOneIsZero(t *testing.T) {
	// ln((1+1)/2) = 0, so every score collapses to zero.
	if got := Score([]string{"cat"}, []string{"cat"}, 1); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}
