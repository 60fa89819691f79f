package extractor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"plan20-extraction-service/internal/hierarchy"
	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/samples"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

func newTestExtractor() (*Extractor, *errors.IssueCollector) {
	log := logger.NewNopLogger()
	issues := errors.NewIssueCollector(0)
	return New(nil, log, logger.NewTrail(nil, log), issues), issues
}

func extractPlan(t *testing.T, p *samples.Plan) (*Extraction, *errors.IssueCollector) {
	t.Helper()
	log := logger.NewNopLogger()
	issues := errors.NewIssueCollector(0)
	trail := logger.NewTrail(nil, log)
	res := hierarchy.NewBuilder(nil, nil, log, trail, issues).Build(p.Workbook("Plan"))
	return New(nil, log, trail, issues).Extract(res.Tags), issues
}

func tag(id string, sub int, cells ...string) models.RowTag {
	return models.RowTag{
		Sheet:      "Plan",
		Row:        models.Row{Index: sub, Cells: cells},
		Identifier: models.Identifier(id),
		SubSeq:     sub,
	}
}

func TestExtractReferencePlan(t *testing.T) {
	ex, issues := extractPlan(t, samples.DefaultPlan())

	if issues.Count() != 0 {
		t.Errorf("Expected no issues, got %d", issues.Count())
	}
	if len(ex.Programs) != 1 {
		t.Fatalf("Expected 1 program, got %d", len(ex.Programs))
	}

	p := ex.Programs[0]
	if p.ID != "A1.B1.C1.2009" {
		t.Errorf("Expected program A1.B1.C1.2009, got %s", p.ID)
	}
	if p.Exercise != "2025" {
		t.Errorf("Expected exercise 2025, got %q", p.Exercise)
	}

	wantFields := models.ProgramFields{
		Program:     "501 - Educação Básica",
		Function:    "12 - Educação",
		OrgUnit:     samples.TargetOrgUnit,
		SubFunction: "361 - Ensino Fundamental",
		Objective:   "Ampliar o acesso",
		Sphere:      "Fiscal",
		ActionOwner: "SEDUC",
	}
	if diff := cmp.Diff(wantFields, p.Fields); diff != "" {
		t.Errorf("Program fields mismatch (-want +got):\n%s", diff)
	}

	if len(p.Actions) != 1 {
		t.Fatalf("Expected 1 action bucket, got %d", len(p.Actions))
	}
	b := p.Actions[0]
	if b.Code != "2009" || b.Text() != "2009 - Manutenção do Ensino" {
		t.Errorf("Expected bucket 2009 with its text, got %s %q", b.Code, b.Text())
	}

	wantProducts := []*models.ProductCandidate{
		{DIndex: 1, Name: "Escolas reformadas", Unit: "Unidade", Region: "0101 - Norte", Target: "10", Remaining: "5"},
		{DIndex: 1, Name: "Kits", Unit: "Kit", Region: "0202 - Sul", Target: "0", Remaining: "0"},
	}
	if diff := cmp.Diff(wantProducts, b.Products); diff != "" {
		t.Errorf("Products mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Indígenas"}, b.PublicTargets); diff != "" {
		t.Errorf("Public targets mismatch (-want +got):\n%s", diff)
	}

	const gid = "A1.B1.C1.2009.D1.E1.F1.G1"
	wantSub := []*models.SubActionEntry{{
		ID:           gid,
		Plan:         "A1.B1.C1.2009.D1.E1.F1",
		Program:      "A1.B1.C1.2009",
		DIndex:       1,
		PlanProduct:  "Escolas reformadas",
		Delivery:     "Reforma - *0101*SUB 361*ADJ*MACRO*PILAR*EIXO*DECRETO*PUBLICO*",
		Owner:        "Fulano",
		Deadline:     "12/2025",
		ManagingUnit: "SEDUC",
		PlanningUnit: "USP",
		Product:      "Escolas",
		Unit:         "Un",
		Detail:       "Reforma geral",
		Regions: []models.RegionRow{
			{Region: "0101 - Norte", Code: "1500107", Municipalities: "Belém; Ananindeua", Target: "6"},
			{Region: "0202 - Sul", Code: "4300001", Municipalities: "Pelotas", Target: "4"},
		},
	}}
	if diff := cmp.Diff(wantSub, b.SubActions); diff != "" {
		t.Errorf("Sub-actions mismatch (-want +got):\n%s", diff)
	}

	stages := ex.StagesOf(gid)
	if len(stages) != 1 {
		t.Fatalf("Expected 1 stage, got %d", len(stages))
	}
	st := stages[0]
	if st.Name != "Aquisição" || st.Owner != "Ciclano" || st.Deadline != "06/2025" {
		t.Errorf("Unexpected stage fields: %q %q %q", st.Name, st.Owner, st.Deadline)
	}
	if diff := cmp.Diff([]string{"0202 - Sul", "0101 - Norte"}, st.Regions); diff != "" {
		t.Errorf("Stage regions mismatch (-want +got):\n%s", diff)
	}
	if len(st.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(st.Items))
	}
	if st.Items[0].Region != "0202 - Sul" || st.Items[0].Nature != "3.3.90.30.01" || st.Items[0].TotalValue != "300,00" {
		t.Errorf("Unexpected first item: %+v", st.Items[0])
	}
	if st.Items[1].Region != "0101 - Norte" || st.Items[1].TotalValue != "1.000,00" {
		t.Errorf("Unexpected second item: %+v", st.Items[1])
	}

	want := Counts{Programs: 1, Buckets: 1, Products: 2, SubActions: 1, Stages: 1, Items: 2}
	if got := ex.Counts(); got != want {
		t.Errorf("Expected counts %+v, got %+v", want, got)
	}
}

func TestExtractSharesProgramContentAcrossBuckets(t *testing.T) {
	x, _ := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1", 1, "Exercício igual a 2026"),
		tag("A1.B1.C1.2009", 1, "Programa:", "", "", "501 - Educação"),
		tag("A1.B1.C1.2009", 4, "Ação (P/A/OE):", "", "", "2009 - Manutenção"),
		tag("A1.B1.C1.2009", 4, "", "", "", "2010 - Reforma"),
		tag("A1.B1.C1.2009.D1", 1, "Produto(s) da Ação"),
		tag("A1.B1.C1.2009.D1", 2, "", "", "", "Escolas (Unidade)", "", "Norte", "1", "0"),
	})

	p := ex.Programs[0]
	if p.Exercise != "2026" {
		t.Errorf("Expected exercise 2026, got %q", p.Exercise)
	}
	if len(p.Actions) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(p.Actions))
	}
	if p.Actions[0].Code != "2009" || p.Actions[1].Code != "2010" {
		t.Errorf("Expected buckets 2009 and 2010, got %s and %s", p.Actions[0].Code, p.Actions[1].Code)
	}
	for _, b := range p.Actions {
		if len(b.Products) != 1 || b.Products[0].Name != "Escolas" {
			t.Errorf("Expected bucket %s to share the product, got %v", b.Code, b.Products)
		}
	}
	if got := ex.Counts().Products; got != 1 {
		t.Errorf("Expected shared products counted once, got %d", got)
	}
}

func TestExtractSecondActionInheritsProgram(t *testing.T) {
	log := logger.NewNopLogger()
	issues := errors.NewIssueCollector(0)
	trail := logger.NewTrail(nil, log)
	wb := &models.Workbook{Sheets: []*models.Sheet{samples.SecondActionSheet("Plan")}}
	res := hierarchy.NewBuilder(nil, nil, log, trail, issues).Build(wb)
	ex := New(nil, log, trail, issues).Extract(res.Tags)

	if len(ex.Programs) != 2 {
		t.Fatalf("Expected 2 programs, got %d", len(ex.Programs))
	}
	first, second := ex.Programs[0], ex.Programs[1]
	if first.ID != "A1.B1.C1.2009" || second.ID != "A1.B1.C1.2010" {
		t.Fatalf("Expected C1.2009 and C1.2010, got %s, %s", first.ID, second.ID)
	}
	if diff := cmp.Diff(first.Fields, second.Fields); diff != "" {
		t.Errorf("Second action fields mismatch (-first +second):\n%s", diff)
	}
	if second.Fields.Program != "501 - Educação Básica" || second.Fields.OrgUnit != samples.TargetOrgUnit {
		t.Errorf("Expected inherited program and unit, got %q %q", second.Fields.Program, second.Fields.OrgUnit)
	}
	if second.Exercise != "2025" {
		t.Errorf("Expected exercise 2025, got %q", second.Exercise)
	}

	if second.Synthetic || len(second.Actions) != 1 {
		t.Fatalf("Expected one real bucket, got synthetic=%t actions=%d", second.Synthetic, len(second.Actions))
	}
	b := second.Actions[0]
	if b.Code != "2010" || b.Text() != "2010 - Transporte Escolar" {
		t.Errorf("Expected bucket 2010 with its text, got %s %q", b.Code, b.Text())
	}
	if len(b.Products) != 1 || b.Products[0].Name != "Kits" {
		t.Errorf("Expected the Kits product under 2010, got %d products", len(b.Products))
	}
	if got := issues.CountByCode(errors.CodeStructuralAmbiguity); got != 0 {
		t.Errorf("Expected no structural issue, got %d", got)
	}
}

func TestExtractActionWithoutProgramHeader(t *testing.T) {
	x, _ := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C1.2010", 1, "Ação (P/A/OE):", "", "", "2010 - Transporte"),
		tag("A1.B1.C1.2010", 2, "Subfunção:", "", "", "361 - Ensino"),
	})

	if len(ex.Programs) != 1 {
		t.Fatalf("Expected 1 program, got %d", len(ex.Programs))
	}
	p := ex.Programs[0]
	if p.Fields.Program != "" || p.Fields.SubFunction != "361 - Ensino" {
		t.Errorf("Expected action rows read from the action slot, got %+v", p.Fields)
	}
	if len(p.Actions) != 1 || p.Actions[0].Code != "2010" {
		t.Errorf("Expected bucket 2010, got %d buckets", len(p.Actions))
	}
}

func TestExtractSkipsEmptyProductLines(t *testing.T) {
	x, _ := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C1.7", 4, "", "", "", "7 - Ação"),
		tag("A1.B1.C1.7.D1", 1, "Produto(s) da Ação", "", "", "ignored"),
		tag("A1.B1.C1.7.D1", 2, "", "", "", "", "", "", "", ""),
		tag("A1.B1.C1.7.D1", 3, "", "", "", "", "", "", "0", ""),
	})

	prods := ex.Programs[0].Actions[0].Products
	if len(prods) != 1 {
		t.Fatalf("Expected 1 product, got %d", len(prods))
	}
	if prods[0].Name != "" || prods[0].Target != "0" {
		t.Errorf("Expected nameless product with target 0, got %+v", prods[0])
	}
}

func TestExtractPlanProductDefault(t *testing.T) {
	x, _ := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C1.7", 4, "", "", "", "7 - Ação"),
		tag("A1.B1.C1.7.D1", 1, "Produto(s) da Ação"),
		tag("A1.B1.C1.7.D1.F1", 1, "Plano de Ação por Produto", "", "", "", "Produto(s):"),
		tag("A1.B1.C1.7.D1.F1.G1", 1, "Subação: Entrega"),
		tag("A1.B1.C1.7.D1.F2", 1, "Plano de Ação por Produto", "", "", "", "PRODUTO(S): Kits"),
		tag("A1.B1.C1.7.D1.F2.G2", 1, "Subação: Outra"),
	})

	subs := ex.Programs[0].Actions[0].SubActions
	if len(subs) != 2 {
		t.Fatalf("Expected 2 sub-actions, got %d", len(subs))
	}
	if subs[0].PlanProduct != models.DefaultProduct {
		t.Errorf("Expected default plan product, got %q", subs[0].PlanProduct)
	}
	if subs[1].PlanProduct != "Kits" {
		t.Errorf("Expected 'Kits', got %q", subs[1].PlanProduct)
	}
	if subs[0].Delivery != "Entrega" {
		t.Errorf("Expected delivery 'Entrega', got %q", subs[0].Delivery)
	}
}

func TestExtractSubActionReopenedAfterDetail(t *testing.T) {
	const g = "A1.B1.C1.7.D1.F1.G1"
	x, _ := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C1.7", 4, "", "", "", "7 - Ação"),
		tag(g, 1, "Subação: Entrega"),
		tag(g, 2, "Responsável: Ana", "", "", "", "Prazo 03/2026"),
		tag(g, 3, "UG: X", "", "", "USP: Y", "sem produto", "", "Unidade: Kg"),
		tag(g, 4, "", "Região", "", "Código"),
		tag(g, 5, "", "0101 - Norte", "", "123456", "Belém", "", "2"),
		tag(g, 6, "Detalhamento do produto: Primeira"),
		tag(g, 7, "", "0202 - Sul", "", "", "", "", "1"),
		tag(g, 8, "DETALHAMENTO DO PRODUTO: Segunda"),
	})

	subs := ex.Programs[0].Actions[0].SubActions
	if len(subs) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(subs))
	}

	first := subs[0]
	if first.Owner != "Ana" || first.Deadline != "03/2026" {
		t.Errorf("Expected owner Ana and deadline 03/2026, got %q %q", first.Owner, first.Deadline)
	}
	if first.ManagingUnit != "X" || first.PlanningUnit != "Y" {
		t.Errorf("Expected units X and Y, got %q %q", first.ManagingUnit, first.PlanningUnit)
	}
	if first.Product != "" || first.Unit != "Kg" {
		t.Errorf("Expected no product and unit Kg, got %q %q", first.Product, first.Unit)
	}
	if first.Detail != "Primeira" || len(first.Regions) != 1 {
		t.Errorf("Expected detail 'Primeira' with 1 region, got %q with %d", first.Detail, len(first.Regions))
	}

	second := subs[1]
	if second.ID != g || second.Delivery != "" {
		t.Errorf("Expected a reopened entry of %s without delivery, got %s %q", g, second.ID, second.Delivery)
	}
	if second.Detail != "Segunda" || len(second.Regions) != 1 || second.Regions[0].Region != "0202 - Sul" {
		t.Errorf("Unexpected second entry: %+v", second)
	}
}

func TestExtractImplicitStage(t *testing.T) {
	const g = "A1.B1.C1.7.D1.F1.G1"
	x, issues := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C1.7", 4, "", "", "", "7 - Ação"),
		tag(g, 1, "Subação: Entrega"),
		tag(g+".H1.I1", 1, "Região de Planejamento:", "", "", "0101 - Norte"),
		tag(g+".H1.I1", 2, "Natureza"),
		tag(g+".H1.I1", 3, "3.3.90.30", "100", "", "Papel", "Resma", "5", "20,00", "100,00"),
		tag(g+".H1.I1", 4, "", "", "", "", "", "", "", ""),
	})

	stages := ex.StagesOf(g)
	if len(stages) != 1 {
		t.Fatalf("Expected 1 stage, got %d", len(stages))
	}
	if !stages[0].Implicit || stages[0].ID != g+".H1" {
		t.Errorf("Expected implicit stage %s.H1, got %+v", g, stages[0])
	}
	if len(stages[0].Items) != 1 || stages[0].Items[0].Description != "Papel" {
		t.Errorf("Expected one item 'Papel', got %+v", stages[0].Items)
	}
	if got := issues.CountByCode(errors.CodeStructuralAmbiguity); got != 1 {
		t.Errorf("Expected 1 structural issue, got %d", got)
	}
}

func TestExtractImplicitSubAction(t *testing.T) {
	const g = "A1.B1.C1.7.D2.F1.G1"
	x, _ := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C1.7", 4, "", "", "", "7 - Ação"),
		tag("A1.B1.C1.7.D2.F1", 1, "Plano de Ação por Produto", "", "", "", "Produto(s): Kits"),
		tag(g+".H1", 1, "Etapa:", "", "", "Compra"),
		tag(g+".H1", 2, "", "", "Beto", "", "", "07/2025"),
	})

	subs := ex.Programs[0].Actions[0].SubActions
	if len(subs) != 1 {
		t.Fatalf("Expected 1 implicit sub-action, got %d", len(subs))
	}
	if subs[0].ID != g || subs[0].DIndex != 2 || subs[0].PlanProduct != "Kits" {
		t.Errorf("Unexpected implicit sub-action: %+v", subs[0])
	}

	st := ex.StagesOf(g)[0]
	if st.Owner != "Beto" || st.Deadline != "07/2025" {
		t.Errorf("Expected owner Beto and deadline 07/2025, got %q %q", st.Owner, st.Deadline)
	}
}

func TestExtractSyntheticBucket(t *testing.T) {
	x, issues := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C1.0", 1, "Programa:", "", "", "501"),
		tag("A1.B1.C1.0.D1", 1, "Produto(s) da Ação"),
		tag("A1.B1.C1.0.D1", 2, "", "", "", "Kits (Kit)"),
		tag("A1.B1.C2.0", 1, "Programa:", "", "", "502"),
	})

	if len(ex.Programs) != 2 {
		t.Fatalf("Expected 2 programs, got %d", len(ex.Programs))
	}
	p := ex.Programs[0]
	if !p.Synthetic || len(p.Actions) != 1 || p.Actions[0].Code != "0" {
		t.Errorf("Expected synthetic bucket 0, got synthetic=%t actions=%d", p.Synthetic, len(p.Actions))
	}
	if len(ex.Programs[1].Actions) != 0 {
		t.Errorf("Expected no bucket for an empty program, got %d", len(ex.Programs[1].Actions))
	}
	if got := issues.CountByCode(errors.CodeStructuralAmbiguity); got != 1 {
		t.Errorf("Expected 1 structural issue, got %d", got)
	}
}

func TestExtractProgramOrderFollowsFirstRow(t *testing.T) {
	x, _ := newTestExtractor()
	ex := x.Extract([]models.RowTag{
		tag("A1.B1.C2.9.D1", 1, "Produto(s) da Ação"),
		tag("A1.B1.C1.8", 4, "", "", "", "8 - Ação"),
		tag("A1.B1.C2.9", 4, "", "", "", "9 - Ação"),
		{Sheet: "Plan", Row: models.Row{Index: 9, Cells: []string{"untagged"}}},
	})

	if len(ex.Programs) != 2 {
		t.Fatalf("Expected 2 programs, got %d", len(ex.Programs))
	}
	if ex.Programs[0].ID != "A1.B1.C2.9" || ex.Programs[1].ID != "A1.B1.C1.8" {
		t.Errorf("Expected C2.9 before C1.8, got %s, %s", ex.Programs[0].ID, ex.Programs[1].ID)
	}
}

func TestBucketCode(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"2009 - Manutenção", "2009"},
		{"12 - 7 abc", "7"},
		{"AB 12 345 6789", "345"},
		{"  Sem código  ", "Sem código"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := BucketCode(tt.text); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSplitProductUnit(t *testing.T) {
	tests := []struct {
		text string
		name string
		unit string
	}{
		{"Escolas (Unidade)", "Escolas", "Unidade"},
		{"Kits (Caixa (10 un))", "Kits", "Caixa (10 un)"},
		{"A (b) c (d)", "A (b) c", "d"},
		{"Sem unidade", "Sem unidade", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, unit := SplitProductUnit(tt.text)
			if name != tt.name || unit != tt.unit {
				t.Errorf("Expected (%q, %q), got (%q, %q)", tt.name, tt.unit, name, unit)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}

	c := DefaultConfig()
	c.DefaultPlanProduct = " "
	if err := c.Validate(); err == nil {
		t.Error("Expected error for empty default plan product")
	}

	c = DefaultConfig()
	c.MaxProgramFieldRows = 3
	if err := c.Validate(); err == nil {
		t.Error("Expected error for too few program rows")
	}
}
