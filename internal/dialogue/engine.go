package dialogue

import (
	"github.com/lukasbauer/sahayak/internal/catalog"
)

// maxPlausibleAge is the largest age accepted before eligibility is computed.
const maxPlausibleAge = 100

// EngineOptions toggles behaviors that differ between deployments.
type EngineOptions struct {
	// ResetOnComplete clears facts, eligible schemes and the selection when
	// an application flow ends (confirmed or denied).
	ResetOnComplete bool
	// NoteContradictions prefixes the reply with a notice when a re-stated
	// age or income differs from the stored value. The new value is kept
	// either way.
	NoteContradictions bool
}

// Engine is the dialogue state machine.
type Engine struct {
	catalog *catalog.Catalog
	opts    EngineOptions
}

// NewEngine creates an engine over a read-only catalog.
func NewEngine(c *catalog.Catalog, opts EngineOptions) *Engine {
	if c == nil {
		c = catalog.Empty()
	}
	return &Engine{catalog: c, opts: opts}
}

// Decide computes the reply, next stage and state delta for a classified
// turn. It does not modify state; every path produces a non-empty utterance.
func (e *Engine) Decide(cls Classification, state State) Decision {
	switch cls.Intent {
	case IntentNullInput:
		return Decision{Utterance: ReplyNotUnderstood, Stage: state.Stage}
	case IntentGreeting:
		return Decision{
			Utterance: ReplyGreeting,
			Stage:     StageIntro,
			Delta:     resetDelta(),
		}
	}

	facts := cls.Facts.Clone()
	d := Decision{Stage: state.Stage, Delta: Delta{UserInfo: &facts}}

	if cls.Intent == IntentQueryStart {
		d.Utterance = ReplyAskAgeIncome
		d.Stage = StageCollectingInfo
		return d
	}

	switch state.Stage {
	case StageIntro:
		if cls.Intent == IntentProvideInfo {
			e.collect(&d, cls.Intent)
		} else {
			d.Utterance = ReplyOnlySchemes
		}

	case StageCollectingInfo:
		e.collect(&d, cls.Intent)

	case StageSchemesPresented:
		switch cls.Intent {
		case IntentAskAllBenefits:
			d.Utterance = renderAllBenefits(state.EligibleSchemes)
		case IntentSelectScheme:
			if cls.Selected != nil {
				sel := *cls.Selected
				d.Utterance = renderSchemeDetail(sel)
				d.Stage = StageSchemeDetail
				d.Delta.SelectedScheme = &sel
			} else {
				d.Utterance = ReplyNameFromList
			}
		case IntentIrrelevant:
			d.Utterance = ReplyDeflect
		default:
			d.Utterance = ReplyChooseScheme
		}

	case StageSchemeDetail:
		switch cls.Intent {
		case IntentConfirmApply:
			if state.SelectedScheme == nil {
				d.Utterance = ReplyChooseScheme
				d.Stage = StageSchemesPresented
				break
			}
			d.Utterance = renderApplyLink(*state.SelectedScheme)
			d.Stage = StageIntro
			e.complete(&d)
		case IntentDeny:
			d.Utterance = ReplyClosing
			d.Stage = StageIntro
			e.complete(&d)
		default:
			d.Utterance = ReplyYesNo
		}
	}

	if d.Utterance == "" {
		d.Utterance = ReplyNotUnderstood
	}
	if e.opts.NoteContradictions && contradicts(state.UserInfo, facts) {
		d.Utterance = ReplyContradiction + " " + d.Utterance
	}
	return d
}

// collect runs the data-collection step: it asks for missing facts, rejects
// implausible ages, and otherwise computes eligibility.
func (e *Engine) collect(d *Decision, intent Intent) {
	facts := d.Delta.UserInfo
	d.Stage = StageCollectingInfo

	if intent == IntentIrrelevant || intent == IntentGreeting {
		d.Utterance = ReplyCollectReprompt
		return
	}
	if !facts.Complete() {
		d.Utterance = ReplyNeedBoth
		return
	}
	if *facts.Age > maxPlausibleAge {
		facts.Age = nil
		d.Utterance = ReplyImplausibleAge
		return
	}

	eligible := e.catalog.Eligible(*facts.Age, *facts.Income)
	if len(eligible) == 0 {
		d.Utterance = ReplyNoSchemes
		d.Stage = StageIntro
		return
	}
	d.Utterance = renderSchemeList(eligible)
	d.Stage = StageSchemesPresented
	d.Delta.SetEligible = true
	d.Delta.EligibleSchemes = eligible
	d.Delta.ClearSelected = true
}

func (e *Engine) complete(d *Decision) {
	if !e.opts.ResetOnComplete {
		return
	}
	d.Delta = resetDelta()
}

func resetDelta() Delta {
	return Delta{
		UserInfo:        &UserInfo{},
		SetEligible:     true,
		EligibleSchemes: nil,
		ClearSelected:   true,
	}
}

// contradicts reports whether next changes a fact that prev already held.
func contradicts(prev, next UserInfo) bool {
	if prev.Age != nil && next.Age != nil && *prev.Age != *next.Age {
		return true
	}
	return prev.Income != nil && next.Income != nil && *prev.Income != *next.Income
}
