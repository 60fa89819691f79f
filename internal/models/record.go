package models

// Column headers of the extracted table, in output order.
const (
	ColExercise         = "Exercício"
	ColProgram          = "Programa"
	ColFunction         = "Função"
	ColOrgUnit          = "Unidade Orçamentária"
	ColAction           = "Ação (P/A/OE)"
	ColSubFunction      = "Subfunção"
	ColObjective        = "Objetivo Específico"
	ColSphere           = "Esfera"
	ColActionOwner      = "Responsável pela Ação"
	ColProduct          = "Produto(s) da Ação"
	ColProductUnit      = "Unidade de Medida do Produto"
	ColProductRegion    = "Região do Produto"
	ColProductTarget    = "Meta do Produto"
	ColProductRemaining = "Saldo Meta do Produto"
	ColPublicTarget     = "Público Transversal"
	ColDelivery         = "Subação/entrega"
	ColOwner            = "Responsável"
	ColDeadline         = "Prazo"
	ColManagingUnit     = "Unid. Gestora"
	ColPlanningUnit     = "Unidade Setorial de Planejamento"
	ColSubActionProduct = "Produto da Subação"
	ColSubActionUnit    = "Unidade de Medida"
	ColSubActionRegion  = "Região da Subação"
	ColCode             = "Código"
	ColMunicipalities   = "Município(s) da entrega"
	ColSubActionTarget  = "Meta da Subação"
	ColDetail           = "Detalhamento do produto"
	ColStage            = "Etapa"
	ColStageOwner       = "Responsável da Etapa"
	ColStageDeadline    = "Prazo da Etapa"
	ColStageRegion      = "Região da Etapa"
	ColNature           = "Natureza"
	ColSource           = "Fonte"
	ColPurpose          = "IDU"
	ColDescription      = "Descrição do Item de Despesa"
	ColItemUnit         = "Unid. Medida"
	ColQuantity         = "Quantidade"
	ColUnitValue        = "Valor Unitário"
	ColTotalValue       = "Valor Total"
)

// Neutral values for fields the workbook leaves empty.
const (
	DefaultProduct     = "Produto exclusivo para ação padronizada"
	DefaultProductUnit = "Percentual"
	DefaultTarget      = "100,00"
	DefaultRemaining   = "0.0"
	DefaultNature      = "0.0.00.00.000"
	DefaultAmount      = "0,00"
	DefaultText        = "-"
)

// ExtractHeaders is the column list of the extracted table.
var ExtractHeaders = []string{
	ColExercise, ColProgram, ColFunction, ColOrgUnit, ColAction, ColSubFunction,
	ColObjective, ColSphere, ColActionOwner, ColProduct, ColProductUnit,
	ColProductRegion, ColProductTarget, ColProductRemaining, ColPublicTarget,
	ColDelivery, ColOwner, ColDeadline, ColManagingUnit, ColPlanningUnit,
	ColSubActionProduct, ColSubActionUnit, ColSubActionRegion, ColCode,
	ColMunicipalities, ColSubActionTarget, ColDetail, ColStage, ColStageOwner,
	ColStageDeadline, ColStageRegion, ColNature, ColSource, ColPurpose,
	ColDescription, ColItemUnit, ColQuantity, ColUnitValue, ColTotalValue,
}

// PlanKeyHeaders are inserted right after the exercise column of the plan table.
var PlanKeyHeaders = []string{
	"Chave de Planejamento",
	"Região",
	"Subfunção + UG",
	"ADJ",
	"Macropolitica",
	"Pilar",
	"Eixo",
	"Politica_Decreto",
	"Público Transversal (chave)",
}

// NatureHeaders are inserted right after the nature column of the plan table.
var NatureHeaders = []string{"Cat.Econ", "Grupo", "Modalidade", "Elemento", "Subelemento"}

// PlanHeaders returns the column list of the post-processed table.
func PlanHeaders() []string {
	out := make([]string, 0, len(ExtractHeaders)+len(PlanKeyHeaders)+len(NatureHeaders))
	for _, h := range ExtractHeaders {
		out = append(out, h)
		switch h {
		case ColExercise:
			out = append(out, PlanKeyHeaders...)
		case ColNature:
			out = append(out, NatureHeaders...)
		}
	}
	return out
}

// DenormalizedRecord is one fully populated output line.
type DenormalizedRecord struct {
	Exercise         string `json:"exercise"`
	Program          string `json:"program"`
	Function         string `json:"function"`
	OrgUnit          string `json:"org_unit"`
	Action           string `json:"action"`
	SubFunction      string `json:"sub_function"`
	Objective        string `json:"objective"`
	Sphere           string `json:"sphere"`
	ActionOwner      string `json:"action_owner"`
	Product          string `json:"product"`
	ProductUnit      string `json:"product_unit"`
	ProductRegion    string `json:"product_region"`
	ProductTarget    string `json:"product_target"`
	ProductRemaining string `json:"product_remaining"`
	PublicTarget     string `json:"public_target"`
	Delivery         string `json:"delivery"`
	Owner            string `json:"owner"`
	Deadline         string `json:"deadline"`
	ManagingUnit     string `json:"managing_unit"`
	PlanningUnit     string `json:"planning_unit"`
	SubActionProduct string `json:"sub_action_product"`
	SubActionUnit    string `json:"sub_action_unit"`
	SubActionRegion  string `json:"sub_action_region"`
	Code             string `json:"code"`
	Municipalities   string `json:"municipalities"`
	SubActionTarget  string `json:"sub_action_target"`
	Detail           string `json:"detail"`
	Stage            string `json:"stage"`
	StageOwner       string `json:"stage_owner"`
	StageDeadline    string `json:"stage_deadline"`
	StageRegion      string `json:"stage_region"`
	Nature           string `json:"nature"`
	Source           string `json:"source"`
	Purpose          string `json:"purpose"`
	Description      string `json:"description"`
	ItemUnit         string `json:"item_unit"`
	Quantity         string `json:"quantity"`
	UnitValue        string `json:"unit_value"`
	TotalValue       string `json:"total_value"`
}

// Fields returns pointers to every column in ExtractHeaders order.
func (r *DenormalizedRecord) Fields() []*string {
	return []*string{
		&r.Exercise, &r.Program, &r.Function, &r.OrgUnit, &r.Action, &r.SubFunction,
		&r.Objective, &r.Sphere, &r.ActionOwner, &r.Product, &r.ProductUnit,
		&r.ProductRegion, &r.ProductTarget, &r.ProductRemaining, &r.PublicTarget,
		&r.Delivery, &r.Owner, &r.Deadline, &r.ManagingUnit, &r.PlanningUnit,
		&r.SubActionProduct, &r.SubActionUnit, &r.SubActionRegion, &r.Code,
		&r.Municipalities, &r.SubActionTarget, &r.Detail, &r.Stage, &r.StageOwner,
		&r.StageDeadline, &r.StageRegion, &r.Nature, &r.Source, &r.Purpose,
		&r.Description, &r.ItemUnit, &r.Quantity, &r.UnitValue, &r.TotalValue,
	}
}

// Values returns the column values in ExtractHeaders order.
func (r *DenormalizedRecord) Values() []string {
	ptrs := r.Fields()
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// PlanRecord is a filtered record with its planning key and nature code
// exploded into positional parts.
type PlanRecord struct {
	Record      DenormalizedRecord `json:"record"`
	PlanningKey string             `json:"planning_key"`
	KeyParts    [8]string          `json:"key_parts"`
	NatureParts [5]string          `json:"nature_parts"`
}

// Values returns the column values in PlanHeaders order.
func (p *PlanRecord) Values() []string {
	base := p.Record.Values()
	out := make([]string, 0, len(base)+len(PlanKeyHeaders)+len(NatureHeaders))
	for i, v := range base {
		out = append(out, v)
		switch ExtractHeaders[i] {
		case ColExercise:
			out = append(out, p.PlanningKey)
			out = append(out, p.KeyParts[:]...)
		case ColNature:
			out = append(out, p.NatureParts[:]...)
		}
	}
	return out
}
