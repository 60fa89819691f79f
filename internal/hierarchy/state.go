package hierarchy

import (
	"plan20-extraction-service/internal/models"
)

// State holds the open identifier of every level while one sheet is walked.
// A fresh State is created per sheet; nothing is shared between sheets except
// the workbook scope.
type State struct {
	workbook    models.Identifier
	block       models.Identifier
	blockActive bool

	programs    map[string]int
	countC      int
	programBase models.Identifier
	action      models.Identifier
	actionDone  bool
	code        string

	pending       []int
	pendingBase   models.Identifier
	pendingActive bool

	countD, countE, countF, countG, countH, countI, countN int

	d, e, f, g, h, i, n models.Identifier
	totalActive         bool

	keyG, keyH       string
	hasKeyG, hasKeyH bool

	sub map[models.Identifier]int
}

func newState(workbook models.Identifier, sheetIndex int) *State {
	return &State{
		workbook:   workbook,
		block:      workbook.Child(models.LevelB, sheetIndex),
		programs:   make(map[string]int),
		actionDone: true,
		sub:        make(map[models.Identifier]int),
	}
}

// resetBelowProgram clears every scope under C, counters included.
func (s *State) resetBelowProgram() {
	s.d, s.e, s.f, s.g, s.h, s.i, s.n = "", "", "", "", "", "", ""
	s.totalActive = false
	s.countD, s.countE, s.countF, s.countG, s.countH, s.countI, s.countN = 0, 0, 0, 0, 0, 0, 0
	s.clearKeyG()
	s.clearKeyH()
}

// resetBelowProduct clears E..I, the product total and their counters.
func (s *State) resetBelowProduct() {
	s.e, s.countE = "", 0
	s.closeTotal()
	s.countN = 0
	s.resetBelowTarget()
}

// resetBelowTarget clears F..I and their counters.
func (s *State) resetBelowTarget() {
	s.f, s.g, s.h, s.i = "", "", "", ""
	s.countF, s.countG, s.countH, s.countI = 0, 0, 0, 0
	s.clearKeyG()
	s.clearKeyH()
}

// resetBelowPlan clears G..I and their counters.
func (s *State) resetBelowPlan() {
	s.g, s.h, s.i = "", "", ""
	s.countG, s.countH, s.countI = 0, 0, 0
	s.clearKeyG()
	s.clearKeyH()
}

func (s *State) clearKeyG() { s.keyG, s.hasKeyG = "", false }
func (s *State) clearKeyH() { s.keyH, s.hasKeyH = "", false }

func (s *State) setKeyG(k string) { s.keyG, s.hasKeyG = k, true }
func (s *State) setKeyH(k string) { s.keyH, s.hasKeyH = k, true }

// closeTotal ends the product-total scope.
func (s *State) closeTotal() {
	s.totalActive = false
	s.n = ""
}

// deepest returns the innermost open scope a plain row falls into.
func (s *State) deepest() models.Identifier {
	for _, id := range []models.Identifier{s.i, s.h, s.g, s.f, s.e, s.d} {
		if id != "" {
			return id
		}
	}
	if s.action != "" && !s.actionDone {
		return s.action
	}
	return ""
}
