package hierarchy

import (
	"plan20-extraction-service/internal/classifier"
	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/textnorm"
)

// transition is one entry of the priority table. When continues is set the
// walk keeps evaluating the following entries after apply.
type transition struct {
	name      string
	match     func(r *sheetRun, rc *rowContext) bool
	apply     func(r *sheetRun, rc *rowContext)
	continues bool
}

func has(l classifier.Label) func(*sheetRun, *rowContext) bool {
	return func(_ *sheetRun, rc *rowContext) bool { return rc.labels.Has(l) }
}

func defaultTransitions() []transition {
	return []transition{
		{name: "exercise", match: has(classifier.Exercise), apply: applyExercise},
		{
			name:  "exercise-noise",
			match: func(r *sheetRun, rc *rowContext) bool { return r.state.blockActive && rc.labels.Has(classifier.Noise) },
			apply: func(*sheetRun, *rowContext) {},
		},
		{
			name:  "exercise-continue",
			match: func(r *sheetRun, _ *rowContext) bool { return r.state.blockActive },
			apply: func(r *sheetRun, rc *rowContext) { r.assign(rc.tag, r.state.block) },
		},
		{
			name: "close-total",
			match: func(r *sheetRun, rc *rowContext) bool {
				return r.state.totalActive && (rc.labels.Has(classifier.PublicTarget) || rc.labels.Has(classifier.DeliveryPlan))
			},
			apply:     func(r *sheetRun, _ *rowContext) { r.state.closeTotal() },
			continues: true,
		},
		{name: "program", match: has(classifier.Program), apply: applyProgram},
		{
			name:  "program-pending",
			match: func(r *sheetRun, _ *rowContext) bool { return r.state.pendingActive && r.state.action == "" },
			apply: applyPending,
		},
		{name: "action", match: has(classifier.Action), apply: applyAction},
		{name: "product", match: has(classifier.Product), apply: applyProduct},
		{name: "product-total", match: has(classifier.ProductTotal), apply: applyProductTotal},
		{name: "public-target", match: has(classifier.PublicTarget), apply: applyPublicTarget},
		{name: "delivery-plan", match: has(classifier.DeliveryPlan), apply: applyDeliveryPlan},
		{
			name:  "sub-action",
			match: func(r *sheetRun, rc *rowContext) bool { return rc.labels.Has(classifier.SubAction) && r.state.f != "" },
			apply: applySubAction,
		},
		{
			name: "stage",
			match: func(r *sheetRun, rc *rowContext) bool {
				return rc.labels.Has(classifier.Stage) && (r.state.g != "" || r.state.f != "")
			},
			apply: applyStage,
		},
		{
			name: "region",
			match: func(r *sheetRun, rc *rowContext) bool {
				return rc.labels.Has(classifier.Region) && (r.state.g != "" || r.state.f != "")
			},
			apply: applyRegion,
		},
		{
			name:  "total-continue",
			match: func(r *sheetRun, _ *rowContext) bool { return r.state.totalActive && r.state.n != "" },
			apply: func(r *sheetRun, rc *rowContext) { r.assign(rc.tag, r.state.n) },
		},
		{name: "fallback", match: func(*sheetRun, *rowContext) bool { return true }, apply: applyFallback},
	}
}

func applyExercise(r *sheetRun, rc *rowContext) {
	r.state.blockActive = true
	r.assign(rc.tag, r.state.block)
}

// applyProgram resolves the program bucket and starts buffering the header
// rows until the action row supplies the code.
func applyProgram(r *sheetRun, rc *rowContext) {
	s := r.state
	if s.pendingActive && len(s.pending) > 0 {
		r.discardPending("a new program row")
	}

	key := classifier.ProgramKey(rc.norm)
	idx, seen := s.programs[key]
	if !seen {
		s.countC++
		idx = s.countC
		s.programs[key] = idx
		r.b.trail.Record(r.location(rc), "program %q -> C%d", key, idx)
	}
	s.programBase = s.block.Child(models.LevelC, idx)

	s.pendingActive = true
	s.pendingBase = s.programBase
	s.pending = []int{rc.tag}

	s.action = ""
	s.actionDone = false
	s.code = ""
	s.resetBelowProgram()
}

// applyPending keeps buffering program header rows; the action row flushes
// the buffer under the final identifier.
func applyPending(r *sheetRun, rc *rowContext) {
	s := r.state
	if !rc.labels.Has(classifier.Action) {
		s.pending = append(s.pending, rc.tag)
		return
	}

	s.code = classifier.ActionCode(rc.norm)
	base := s.pendingBase
	if base == "" {
		base = s.programBase
	}
	if base == "" {
		base = r.newProgramBase()
		s.programBase = base
	}
	s.action = base.WithCode(s.code)
	s.actionDone = false
	r.opened(rc, s.action)

	s.sub[s.action] = 0
	for _, tag := range append(s.pending, rc.tag) {
		r.assign(tag, s.action)
	}
	r.b.trail.Record(r.location(rc), "action %s assigned to %d buffered rows", s.action, len(s.pending)+1)

	s.pending = nil
	s.pendingBase = ""
	s.pendingActive = false
	s.resetBelowProgram()
}

// applyAction handles an action row outside a program buffer.
func applyAction(r *sheetRun, rc *rowContext) {
	s := r.state
	s.code = classifier.ActionCode(rc.norm)
	if s.programBase == "" {
		s.programBase = r.newProgramBase()
		r.b.trail.Record(r.location(rc), "action row with no program; base %s created", s.programBase)
	}
	s.action = s.programBase.WithCode(s.code)
	s.actionDone = false
	if s.sub[s.action] == 0 {
		r.opened(rc, s.action)
	}
	r.assign(rc.tag, s.action)
	s.resetBelowProgram()
}

func applyProduct(r *sheetRun, rc *rowContext) {
	s := r.state
	r.ensureAction(rc)
	s.resetBelowProduct()
	s.countD++
	s.d = s.action.Child(models.LevelD, s.countD)
	s.actionDone = true
	r.open(rc, s.d)
}

func applyProductTotal(r *sheetRun, rc *rowContext) {
	s := r.state
	s.totalActive = true
	r.ensureAction(rc)
	if r.ensureProduct(rc) {
		s.countN = 0
	}
	s.countN++
	s.n = s.d.Child(models.LevelN, s.countN)
	s.resetBelowPlan()
	r.open(rc, s.n)
}

func applyPublicTarget(r *sheetRun, rc *rowContext) {
	s := r.state
	s.closeTotal()
	r.ensureProduct(rc)
	s.countE++
	s.e = s.d.Child(models.LevelE, s.countE)
	s.resetBelowTarget()
	r.open(rc, s.e)
}

func applyDeliveryPlan(r *sheetRun, rc *rowContext) {
	s := r.state
	r.ensureProduct(rc)
	parent := s.d
	if s.e != "" {
		parent = s.e
	}
	s.countF++
	s.f = parent.Child(models.LevelF, s.countF)
	s.resetBelowPlan()
	r.open(rc, s.f)
}

// applySubAction opens a new sub-action when the key after the colon changes,
// otherwise the row continues the current one.
func applySubAction(r *sheetRun, rc *rowContext) {
	s := r.state
	key := textnorm.KeyAfterColon(rc.row.Cells)
	if s.g != "" && s.hasKeyG && key == s.keyG {
		r.assign(rc.tag, s.g)
		return
	}
	s.countG++
	s.g = s.f.Child(models.LevelG, s.countG)
	s.setKeyG(key)
	s.h, s.i = "", ""
	s.countH, s.countI = 0, 0
	s.clearKeyH()
	r.open(rc, s.g)
}

// applyStage applies the same key rule one level down, creating an implicit
// sub-action when the stage sits directly under a delivery plan.
func applyStage(r *sheetRun, rc *rowContext) {
	s := r.state
	r.ensureSubAction(rc)
	key := textnorm.KeyAfterColon(rc.row.Cells)
	if s.h != "" && s.hasKeyH && key == s.keyH {
		r.assign(rc.tag, s.h)
		return
	}
	s.countH++
	s.h = s.g.Child(models.LevelH, s.countH)
	s.setKeyH(key)
	s.i, s.countI = "", 0
	r.open(rc, s.h)
}

// applyRegion always opens a new region scope, synthesizing the stage when
// none is open.
func applyRegion(r *sheetRun, rc *rowContext) {
	s := r.state
	if s.h == "" {
		r.ensureSubAction(rc)
		if s.countH == 0 {
			s.countH = 1
		}
		s.h = s.g.Child(models.LevelH, s.countH)
		if !s.hasKeyH {
			s.setKeyH(implicitKey)
		}
		r.opened(rc, s.h)
		r.b.trail.Record(r.location(rc), "region row with no stage; using %s", s.h)
	}
	s.countI++
	s.i = s.h.Child(models.LevelI, s.countI)
	r.open(rc, s.i)
}

func applyFallback(r *sheetRun, rc *rowContext) {
	if id := r.state.deepest(); id != "" {
		r.assign(rc.tag, id)
	}
}
