package hierarchy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

func sheet(name string, rows ...[]string) *models.Sheet {
	s := &models.Sheet{Name: name}
	for i, cells := range rows {
		s.Rows = append(s.Rows, models.Row{Index: i + 1, Cells: cells})
	}
	return s
}

func newTestBuilder() (*Builder, *errors.IssueCollector, *logger.Trail) {
	log := logger.NewNopLogger()
	issues := errors.NewIssueCollector(0)
	trail := logger.NewTrail(nil, log)
	return NewBuilder(nil, nil, log, trail, issues), issues, trail
}

func planSheet() *models.Sheet {
	return sheet("Plan",
		[]string{"Exercício igual a 2025"},
		[]string{"UO: 14.101 - SECRETARIA DE ESTADO DE EDUCAÇÃO"},
		[]string{""},
		[]string{"Programa: 501 - Educação Básica"},
		[]string{"Função: 12 - Educação"},
		[]string{"Ação (P/A/OE): 2009 - Manutenção"},
		[]string{"Produto(s) da Ação"},
		[]string{"", "", "", "Escolas reformadas / Unidade", "", "Norte", "10", "5"},
		[]string{"Público Transversal"},
		[]string{"", "", "", "Indígenas"},
		[]string{"Plano de Ação por Produto"},
		[]string{"Subação/Entrega: 01 - Reforma"},
		[]string{"Responsável: Fulano", "", "", "", "Prazo: 12/2025"},
		[]string{"Etapa: Aquisição"},
		[]string{"Região de Planejamento: 0101 - Norte"},
		[]string{"3.3.90.30", "101", "Custeio"},
	)
}

func tagsByRow(res *Result) map[int]models.RowTag {
	out := make(map[int]models.RowTag, len(res.Tags))
	for _, t := range res.Tags {
		out[t.Row.Index] = t
	}
	return out
}

func TestBuildAssignsHierarchy(t *testing.T) {
	b, issues, _ := newTestBuilder()
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{planSheet()}})

	const action = "A1.B1.C1.2009"
	tests := []struct {
		row int
		id  string
		sub int
	}{
		{1, "A1.B1", 1},
		{2, "A1.B1", 2},
		{4, action, 1},
		{5, action, 2},
		{6, action, 3},
		{7, action + ".D1", 1},
		{8, action + ".D1", 2},
		{9, action + ".D1.E1", 1},
		{10, action + ".D1.E1", 2},
		{11, action + ".D1.E1.F1", 1},
		{12, action + ".D1.E1.F1.G1", 1},
		{13, action + ".D1.E1.F1.G1", 2},
		{14, action + ".D1.E1.F1.G1.H1", 1},
		{15, action + ".D1.E1.F1.G1.H1.I1", 1},
		{16, action + ".D1.E1.F1.G1.H1.I1", 2},
	}

	byRow := tagsByRow(res)
	for _, tt := range tests {
		got, ok := byRow[tt.row]
		if !ok {
			t.Errorf("expected row %d in tags", tt.row)
			continue
		}
		if string(got.Identifier) != tt.id || got.SubSeq != tt.sub {
			t.Errorf("row %d: expected %s#%d, got %s#%d", tt.row, tt.id, tt.sub, got.Identifier, got.SubSeq)
		}
	}

	if len(res.Tags) != 15 {
		t.Errorf("expected 15 non-blank rows, got %d", len(res.Tags))
	}
	if issues.Count() != 0 {
		t.Errorf("expected no issues, got %d", issues.Count())
	}
	if v := Validate(res); len(v) != 0 {
		t.Errorf("expected valid result, got %v", v)
	}
}

func TestBuildDiscardsPendingOnBlankRow(t *testing.T) {
	b, issues, trail := newTestBuilder()
	s := sheet("Plan",
		[]string{"Programa: 501 - Educação"},
		[]string{""},
		[]string{"Ação (P/A/OE): 2009 - Manutenção"},
	)
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{s}})

	byRow := tagsByRow(res)
	if tag := byRow[1]; tag.Tagged() {
		t.Errorf("expected discarded program row to stay untagged, got %s", byRow[1].Identifier)
	}
	if got := byRow[3].Identifier; got != "A1.B1.C1.2009" {
		t.Errorf("expected action under the program base, got %s", got)
	}
	if res.Sheets[0].Discarded != 1 {
		t.Errorf("expected 1 discarded row, got %d", res.Sheets[0].Discarded)
	}
	if issues.CountByCode(errors.CodeStructuralAmbiguity) != 1 {
		t.Errorf("expected 1 structural ambiguity issue, got %d", issues.CountByCode(errors.CodeStructuralAmbiguity))
	}
	if trail.Len() == 0 {
		t.Error("expected trail entries")
	}
}

func TestBuildTwoActionsOfOneProgram(t *testing.T) {
	b, _, _ := newTestBuilder()
	s := sheet("Plan",
		[]string{"Programa: 501 - Educação"},
		[]string{"Ação (P/A/OE): 2009 - Manutenção"},
		[]string{"Produto(s) da Ação"},
		[]string{"Programa: 501 - Educação"},
		[]string{"Ação (P/A/OE): 2010 - Transporte"},
		[]string{"Produto(s) da Ação"},
		[]string{"Programa: 777 - Saúde"},
		[]string{"Ação (P/A/OE): 3001 - Hospitais"},
	)
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{s}})
	byRow := tagsByRow(res)

	expected := map[int]string{
		2: "A1.B1.C1.2009",
		3: "A1.B1.C1.2009.D1",
		4: "A1.B1.C1.2010",
		6: "A1.B1.C1.2010.D1",
		8: "A1.B1.C2.3001",
	}
	for row, id := range expected {
		if got := string(byRow[row].Identifier); got != id {
			t.Errorf("row %d: expected %s, got %s", row, id, got)
		}
	}
	if v := Validate(res); len(v) != 0 {
		t.Errorf("expected valid result, got %d issues", len(v))
	}
}

func TestBuildSecondActionWithoutProgramRow(t *testing.T) {
	b, _, _ := newTestBuilder()
	s := sheet("Plan",
		[]string{"Exercício igual a 2025"},
		[]string{""},
		[]string{"Programa: 501 - Educação"},
		[]string{"Função: 12 - Educação"},
		[]string{"Unidade Orçamentária: 14.101"},
		[]string{"Ação (P/A/OE): 2009 - Manutenção"},
		[]string{"Ação (P/A/OE): 2010 - Transporte"},
		[]string{"Produto(s) da Ação"},
		[]string{"", "", "", "Kits (Kit)"},
	)
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{s}})
	byRow := tagsByRow(res)

	expected := map[int]struct {
		id  string
		sub int
	}{
		3: {"A1.B1.C1.2009", 1},
		6: {"A1.B1.C1.2009", 4},
		7: {"A1.B1.C1.2010", 1},
		8: {"A1.B1.C1.2010.D1", 1},
		9: {"A1.B1.C1.2010.D1", 2},
	}
	for row, want := range expected {
		got := byRow[row]
		if string(got.Identifier) != want.id || got.SubSeq != want.sub {
			t.Errorf("row %d: expected %s/%d, got %s/%d", row, want.id, want.sub, got.Identifier, got.SubSeq)
		}
	}
}

func TestBuildImplicitSubActionAndStage(t *testing.T) {
	b, _, _ := newTestBuilder()
	s := sheet("Plan",
		[]string{"Programa: 501"},
		[]string{"Ação (P/A/OE): 2009"},
		[]string{"Produto(s) da Ação"},
		[]string{"Plano de Ação por Produto"},
		[]string{"Etapa: Compra"},
		[]string{""},
		[]string{"Região de Planejamento: 0202 - Sul"},
	)
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{s}})
	byRow := tagsByRow(res)

	if got := byRow[5].Identifier; got != "A1.B1.C1.2009.D1.F1.G1.H1" {
		t.Errorf("expected stage under implicit sub-action, got %s", got)
	}
	if got := byRow[7].Identifier; got != "A1.B1.C1.2009.D1.F1.G1.H1.I1" {
		t.Errorf("expected region under the reopened stage, got %s", got)
	}
	if v := Validate(res); len(v) != 0 {
		t.Errorf("expected valid result, got %d issues", len(v))
	}
}

func TestBuildProductTotalScope(t *testing.T) {
	b, _, _ := newTestBuilder()
	s := sheet("Plan",
		[]string{"Programa: 501"},
		[]string{"Ação (P/A/OE): 2009"},
		[]string{"Produto(s) da Ação"},
		[]string{"Total por Produto"},
		[]string{"", "", "", "", "", "", "10", "0"},
		[]string{"Público Transversal"},
		[]string{"", "", "", "Quilombolas"},
	)
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{s}})
	byRow := tagsByRow(res)

	expected := []struct {
		row int
		id  string
		sub int
	}{
		{4, "A1.B1.C1.2009.D1.N1", 1},
		{5, "A1.B1.C1.2009.D1.N1", 2},
		{6, "A1.B1.C1.2009.D1.E1", 1},
		{7, "A1.B1.C1.2009.D1.E1", 2},
	}
	for _, tt := range expected {
		got := byRow[tt.row]
		if string(got.Identifier) != tt.id || got.SubSeq != tt.sub {
			t.Errorf("row %d: expected %s#%d, got %s#%d", tt.row, tt.id, tt.sub, got.Identifier, got.SubSeq)
		}
	}
}

func TestBuildSyntheticAction(t *testing.T) {
	b, issues, _ := newTestBuilder()
	s := sheet("Plan",
		[]string{"Produto(s) da Ação"},
		[]string{"", "", "", "Kits"},
	)
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{s}})
	byRow := tagsByRow(res)

	if got := byRow[1].Identifier; got != "A1.B1.C1.0.D1" {
		t.Errorf("expected product under synthetic action, got %s", got)
	}
	if issues.CountByCode(errors.CodeStructuralAmbiguity) != 1 {
		t.Errorf("expected synthetic action issue, got %d", issues.CountByCode(errors.CodeStructuralAmbiguity))
	}
	if v := Validate(res); len(v) != 0 {
		t.Errorf("expected valid result, got %d issues", len(v))
	}
}

func TestBuildSheetWithoutProgram(t *testing.T) {
	b, issues, _ := newTestBuilder()
	s := sheet("Capa", []string{"Relatório"}, []string{"Emitido em 01/01/2025"})
	res := b.Build(&models.Workbook{Sheets: []*models.Sheet{s}})

	if res.TaggedCount() != 0 {
		t.Errorf("expected no tagged rows, got %d", res.TaggedCount())
	}
	if len(res.Tags) != 2 {
		t.Errorf("expected 2 audit rows, got %d", len(res.Tags))
	}
	if issues.CountByCode(errors.CodeMissingRequiredBlock) != 1 {
		t.Errorf("expected missing block issue, got %d", issues.CountByCode(errors.CodeMissingRequiredBlock))
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	wb := &models.Workbook{Sheets: []*models.Sheet{planSheet(), planSheet()}}
	b1, _, _ := newTestBuilder()
	b2, _, _ := newTestBuilder()

	first := b1.Build(wb)
	second := b2.Build(wb)
	if diff := cmp.Diff(first.Tags, second.Tags); diff != "" {
		t.Errorf("expected identical tags (-first +second):\n%s", diff)
	}
	if got := first.Tags[len(first.Tags)-1].Identifier; got != "A1.B2.C1.2009.D1.E1.F1.G1.H1.I1" {
		t.Errorf("expected second sheet under B2, got %s", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
	if err := (&Config{WorkbookCounter: 0}).Validate(); err == nil {
		t.Error("expected error for zero workbook counter")
	}
}
