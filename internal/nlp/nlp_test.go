package nlp

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

func TestNormalize(t *testing.T) {
	n := NewFrenchNormalizer(nil)

	got := n.Normalize("Très BON produit !!! Livraison rapide, 10/10 😀 et je recommande.")
	want := []string{"très", "bon", "produit", "rapide", "😀", "recommande"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeDropsDomainStopWords(t *testing.T) {
	n := NewFrenchNormalizer(DefaultStopWords("colis"))

	got := n.Normalize("Commande reçue, colis abîmé. Livrer plus vite svp")
	want := []string{"reçue", "abîmé", "plus", "vite", "svp"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	n := NewFrenchNormalizer(nil)
	if got := n.Normalize("  ... 123 !!"); len(got) != 0 {
		t.Errorf("expected no tokens, got %v", got)
	}
}

func TestCleanFrenchCasing(t *testing.T) {
	n := NewFrenchNormalizer(nil)
	if got := n.Clean("  ÉTÉ Génial!  "); got != "été génial" {
		t.Errorf("unexpected clean result %q", got)
	}
}

func TestJoinBigrams(t *testing.T) {
	docs := [][]string{
		{"service", "client", "top"},
		{"service", "client", "nul"},
		{"bon", "service"},
	}
	got := JoinBigrams(docs, 2)
	want := [][]string{
		{"service_client", "top"},
		{"service_client", "nul"},
		{"bon", "service"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bigrams mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(docs, JoinBigrams(docs, 10)); diff != "" {
		t.Errorf("rare pairs should be left alone (-want +got):\n%s", diff)
	}
}

func rating(n int) *int { return &n }

func TestLexiconClassifier(t *testing.T) {
	c := NewLexiconClassifier(4)

	tests := []struct {
		name string
		rec  types.ReviewRecord
		want int
	}{
		{"positive", types.ReviewRecord{Title: "Parfait", Body: "Livraison rapide, je recommande"}, 1},
		{"negative", types.ReviewRecord{Title: "Arnaque", Body: "colis abîmé et remboursement refusé"}, 0},
		{"negated positive", types.ReviewRecord{Title: "Bof", Body: "je ne suis pas satisfait"}, 0},
		{"negated negative", types.ReviewRecord{Title: "Ok", Body: "pas de problème, très bien"}, 1},
		{"neutral low rating", types.ReviewRecord{Title: "Reçu", Body: "colis reçu", Rating: rating(2)}, 0},
		{"neutral high rating", types.ReviewRecord{Title: "Reçu", Body: "colis reçu", Rating: rating(5)}, 1},
		{"neutral no rating", types.ReviewRecord{Title: "Reçu"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.rec)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q) = %d, want %d (score %d)", tt.rec.Text(), got, tt.want, c.Score(tt.rec.Text()))
			}
		})
	}
}
