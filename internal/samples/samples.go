// Package samples builds synthetic Plan20 worksheets.
//
// A Plan describes the content of a budget plan export; Sheet renders it in
// the row layout of the real report so the whole pipeline can run on it. The
// output is deterministic: the same Plan always renders the same rows.
package samples

import (
	"fmt"

	"plan20-extraction-service/internal/models"
)

// TargetOrgUnit is the organizational unit of the default sample programs.
const TargetOrgUnit = "14.101 - SECRETARIA DE ESTADO DE EDUCAÇÃO"

// Product is one line of a product block.
type Product struct {
	Name      string
	Unit      string
	Region    string
	Target    string
	Remaining string
}

// DeliveryRegion is one region line of a sub-action.
type DeliveryRegion struct {
	Region         string
	Code           string
	Municipalities string
	Target         string
}

// Item is one expense line.
type Item struct {
	Nature      string
	Source      string
	Purpose     string
	Description string
	Unit        string
	Quantity    string
	UnitValue   string
	TotalValue  string
}

// StageRegion is a region of planning block with its items.
type StageRegion struct {
	Region string
	Items  []Item
}

// Stage is an execution phase of a sub-action.
type Stage struct {
	Name     string
	Owner    string
	Deadline string
	Regions  []StageRegion
}

// SubAction is one delivery of a delivery plan.
type SubAction struct {
	Delivery     string
	Owner        string
	Deadline     string
	ManagingUnit string
	PlanningUnit string
	Product      string
	Unit         string
	Detail       string
	Regions      []DeliveryRegion
	Stages       []Stage
}

// Program is one program block with a single action.
type Program struct {
	Program       string
	Function      string
	OrgUnit       string
	Action        string
	SubFunction   string
	Objective     string
	Sphere        string
	ActionOwner   string
	Products      []Product
	PublicTargets []string
	PlanProduct   string
	SubActions    []SubAction
}

// Plan is the content of one worksheet.
type Plan struct {
	Exercise string
	Programs []Program
}

// DefaultProgram returns the reference program: two products, one sub-action
// with two region lines and one stage with an item in each region.
func DefaultProgram() Program {
	return Program{
		Program:     "501 - Educação Básica",
		Function:    "12 - Educação",
		OrgUnit:     TargetOrgUnit,
		Action:      "2009 - Manutenção do Ensino",
		SubFunction: "361 - Ensino Fundamental",
		Objective:   "Ampliar o acesso",
		Sphere:      "Fiscal",
		ActionOwner: "SEDUC",
		Products: []Product{
			{Name: "Escolas reformadas", Unit: "Unidade", Region: "0101 - Norte", Target: "10", Remaining: "5"},
			{Name: "Kits", Unit: "Kit", Region: "0202 - Sul", Target: "0", Remaining: "0"},
		},
		PublicTargets: []string{"Indígenas"},
		PlanProduct:   "Escolas reformadas",
		SubActions: []SubAction{{
			Delivery:     "Reforma - *0101*SUB 361*ADJ*MACRO*PILAR*EIXO*DECRETO*PUBLICO*",
			Owner:        "Fulano",
			Deadline:     "12/2025",
			ManagingUnit: "SEDUC",
			PlanningUnit: "USP",
			Product:      "Escolas",
			Unit:         "Un",
			Detail:       "Reforma geral",
			Regions: []DeliveryRegion{
				{Region: "0101 - Norte", Code: "1500107", Municipalities: "Belém; Ananindeua", Target: "6"},
				{Region: "0202 - Sul", Code: "4300001", Municipalities: "Pelotas", Target: "4"},
			},
			Stages: []Stage{{
				Name:     "Aquisição",
				Owner:    "Ciclano",
				Deadline: "06/2025",
				Regions: []StageRegion{
					{Region: "0202 - Sul", Items: []Item{{
						Nature: "3.3.90.30.01", Source: "101", Purpose: "0", Description: "Cimento",
						Unit: "Saco", Quantity: "10", UnitValue: "30,00", TotalValue: "300,00",
					}}},
					{Region: "0101 - Norte", Items: []Item{{
						Nature: "4.4.90.52", Source: "101", Purpose: "0", Description: "Mesa",
						Unit: "Un", Quantity: "2", UnitValue: "500,00", TotalValue: "1.000,00",
					}}},
				},
			}},
		}},
	}
}

// DefaultPlan returns a plan holding the reference program.
func DefaultPlan() *Plan {
	return &Plan{Exercise: "2025", Programs: []Program{DefaultProgram()}}
}

// Generate returns a plan of n programs derived from the reference program.
// Every third program belongs to another organizational unit.
func Generate(n int) *Plan {
	p := &Plan{Exercise: "2025"}
	for i := 0; i < n; i++ {
		prog := DefaultProgram()
		prog.Program = fmt.Sprintf("%d - Programa %d", 501+i, i+1)
		prog.Action = fmt.Sprintf("%d - Ação %d", 2009+i, i+1)
		if i%3 == 2 {
			prog.OrgUnit = "15.101 - SECRETARIA DE ESTADO DE SAÚDE"
		}
		p.Programs = append(p.Programs, prog)
	}
	return p
}

// Sheet renders the plan rows.
func (p *Plan) Sheet(name string) *models.Sheet {
	b := NewSheetBuilder(name)
	b.Row("Exercício igual a " + p.Exercise)
	b.Blank()
	for _, prog := range p.Programs {
		prog.render(b)
		b.Blank()
	}
	return b.Build()
}

// SecondActionSheet renders one program header followed by two action rows.
// Only the second action carries a product block.
func SecondActionSheet(name string) *models.Sheet {
	prog := DefaultProgram()
	return NewSheetBuilder(name).
		Row("Exercício igual a 2025").
		Blank().
		Row("Programa:", "", "", prog.Program).
		Row("Função:", "", "", prog.Function).
		Row("Unidade Orçamentária:", "", "", prog.OrgUnit).
		Row("Ação (P/A/OE):", "", "", prog.Action).
		Row("Ação (P/A/OE):", "", "", "2010 - Transporte Escolar").
		Row("Produto(s) da Ação", "", "", "", "", "Região", "Meta", "Saldo").
		Row("", "", "", "Kits (Kit)", "", "0101 - Norte", "10", "5").
		Build()
}

// Workbook renders the plan once per sheet name.
func (p *Plan) Workbook(sheets ...string) *models.Workbook {
	if len(sheets) == 0 {
		sheets = []string{"Plan20"}
	}
	wb := &models.Workbook{}
	for _, name := range sheets {
		wb.Sheets = append(wb.Sheets, p.Sheet(name))
	}
	return wb
}

func (prog Program) render(b *SheetBuilder) {
	b.Row("Programa:", "", "", prog.Program)
	b.Row("Função:", "", "", prog.Function)
	b.Row("Unidade Orçamentária:", "", "", prog.OrgUnit)
	b.Row("Ação (P/A/OE):", "", "", prog.Action)
	b.Row("Subfunção:", "", "", prog.SubFunction)
	b.Row("Objetivo Específico:", "", "", prog.Objective)
	b.Row("Esfera:", "", "", prog.Sphere)
	b.Row("Responsável pela Ação:", "", "", prog.ActionOwner)

	b.Row("Produto(s) da Ação", "", "", "", "", "Região", "Meta", "Saldo")
	for _, pr := range prog.Products {
		name := pr.Name
		if pr.Unit != "" {
			name = fmt.Sprintf("%s (%s)", pr.Name, pr.Unit)
		}
		b.Row("", "", "", name, "", pr.Region, pr.Target, pr.Remaining)
	}

	if len(prog.PublicTargets) > 0 {
		b.Row("Público Transversal")
		for _, pt := range prog.PublicTargets {
			b.Row("", "", "", pt)
		}
	}

	b.Row("Plano de Ação por Produto", "", "", "", "Produto(s): "+prog.PlanProduct)
	for _, sa := range prog.SubActions {
		sa.render(b)
	}
}

func (sa SubAction) render(b *SheetBuilder) {
	b.Row("Subação/Entrega: " + sa.Delivery)
	b.Row("Responsável: "+sa.Owner, "", "", "", "Prazo: "+sa.Deadline)
	b.Row("Unid. Gestora: "+sa.ManagingUnit, "", "", "Unidade Setorial: "+sa.PlanningUnit,
		"Produto: "+sa.Product, "", "Unidade: "+sa.Unit)
	b.Row("", "Região", "", "Código", "Municípios", "", "Meta")
	for _, r := range sa.Regions {
		b.Row("", r.Region, "", r.Code, r.Municipalities, "", r.Target)
	}
	b.Row("Detalhamento do produto: " + sa.Detail)

	for _, st := range sa.Stages {
		b.Row("Etapa:", "", "", st.Name)
		b.Row("", "", st.Owner, "", "", "Prazo: "+st.Deadline)
		for _, reg := range st.Regions {
			b.Row("Região de Planejamento:", "", "", reg.Region)
			b.Row("Natureza", "Fonte", "IDU", "Descrição", "Unid", "Qtd", "Valor Unit", "Valor Total")
			for _, it := range reg.Items {
				b.Row(it.Nature, it.Source, it.Purpose, it.Description, it.Unit, it.Quantity, it.UnitValue, it.TotalValue)
			}
		}
	}
}
