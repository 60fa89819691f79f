package classifier

import (
	"testing"

	"plan20-extraction-service/internal/textnorm"
)

func TestClassify(t *testing.T) {
	c := New()

	tests := []struct {
		raw      string
		expected []Label
	}{
		{"Exercício igual a 2025", []Label{Exercise}},
		{"Exercicio Igual A 2024", []Label{Exercise}},
		{"Emitir relatório por UO", []Label{Noise}},
		{"Programa: 501 - Educação Básica", []Label{Program}},
		{"Ação (P/A/OE):   2009 - Manutenção", []Label{Action}},
		{"Produto(s) da Ação", []Label{Product}},
		{"Produtos da Ação", []Label{Product}},
		{"Total por Produto", []Label{ProductTotal}},
		{"Público Transversal", []Label{PublicTarget}},
		{"Plano de Ação por Produto", []Label{DeliveryPlan}},
		{"Subação/Entrega: 01 - Reforma", []Label{SubAction}},
		{"Subação: 02", []Label{SubAction}},
		{"Etapa: Aquisição de kits", []Label{Stage}},
		{"Região de Planejamento: 0101 - Norte", []Label{Region}},
		{"Região Planejamento 0202", []Label{Region}},
		{"Natureza 3.3.90.30", nil},
		{"", nil},
		{"Plano de Ação por Produto - Total por Produto", []Label{ProductTotal, DeliveryPlan}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := c.Classify(textnorm.Normalize(tt.raw))
			var want LabelSet
			for _, l := range tt.expected {
				want |= LabelSet(l)
			}
			if got != want {
				t.Errorf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestClassifyIsPositional(t *testing.T) {
	c := New()

	// markers anchored at the start of the row do not fire mid-text
	for _, raw := range []string{
		"Meta do programa 501",
		"Ver etapa anterior",
		"Código da região de planejamento",
	} {
		got := c.Classify(textnorm.Normalize(raw))
		if got.Has(Program) || got.Has(Stage) || got.Has(Region) {
			t.Errorf("expected no anchored marker for %q, got %s", raw, got)
		}
	}
}

func TestExtractActionCode(t *testing.T) {
	tests := []struct {
		raw      string
		code     string
		found    bool
		fallback string
	}{
		{"Ação (P/A/OE): 2009 - Manutenção", "2009", true, "2009"},
		{"Ação P A O E - 4410", "4410", true, "4410"},
		{"Ação P/A/O/E 12 e 2233", "12", true, "12"},
		{"Ação sem código", "", false, "0"},
		{"Ação 77 referência 88", "", false, "88"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			norm := textnorm.Normalize(tt.raw)
			code, ok := ExtractActionCode(norm)
			if ok != tt.found || code != tt.code {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.code, tt.found, code, ok)
			}
			if got := ActionCode(norm); got != tt.fallback {
				t.Errorf("expected fallback %q, got %q", tt.fallback, got)
			}
		})
	}
}

func TestProgramKey(t *testing.T) {
	if got := ProgramKey(textnorm.Normalize("Programa 501 - Educação")); got != "501" {
		t.Errorf("expected 501, got %q", got)
	}
	norm := textnorm.Normalize("Programa: Educação")
	if got := ProgramKey(norm); got != norm {
		t.Errorf("expected normalized text as key, got %q", got)
	}
}

func TestLabelSetString(t *testing.T) {
	s := LabelSet(Program) | LabelSet(Stage)
	if s.String() != "program+stage" {
		t.Errorf("expected program+stage, got %s", s.String())
	}
	if LabelSet(0).String() != "none" {
		t.Errorf("expected none, got %s", LabelSet(0).String())
	}
}
