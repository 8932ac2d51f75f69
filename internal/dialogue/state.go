// Package dialogue implements the scheme-discovery conversation: the intent
// classifier that turns an utterance into a Classification and the engine
// that turns a Classification into the next reply and stage.
package dialogue

import "github.com/lukasbauer/sahayak/internal/catalog"

// Stage is the engine's position in the scheme-discovery flow.
type Stage string

const (
	StageIntro            Stage = "intro"
	StageCollectingInfo   Stage = "collecting_info"
	StageSchemesPresented Stage = "schemes_presented"
	StageSchemeDetail     Stage = "scheme_detail"
)

// Intent is the closed set of communicative purposes the classifier emits.
type Intent string

const (
	IntentNullInput      Intent = "null_input"
	IntentGreeting       Intent = "greeting"
	IntentDeny           Intent = "deny"
	IntentQueryStart     Intent = "query_start"
	IntentProvideInfo    Intent = "provide_info"
	IntentAskAllBenefits Intent = "ask_all_benefits"
	IntentSelectScheme   Intent = "select_scheme"
	IntentConfirmApply   Intent = "confirm_apply"
	IntentIrrelevant     Intent = "irrelevant"
)

// FallbackIntents are the labels the fallback classifier may choose from.
var FallbackIntents = []Intent{
	IntentQueryStart,
	IntentProvideInfo,
	IntentAskAllBenefits,
	IntentSelectScheme,
	IntentConfirmApply,
	IntentIrrelevant,
}

func isFallbackIntent(i Intent) bool {
	for _, f := range FallbackIntents {
		if f == i {
			return true
		}
	}
	return false
}

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the transcript.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserInfo holds the facts collected from the user. Nil means not provided.
type UserInfo struct {
	Age    *int `json:"age,omitempty"`
	Income *int `json:"income,omitempty"`
}

// Clone returns a copy that shares no pointers with u.
func (u UserInfo) Clone() UserInfo {
	var out UserInfo
	if u.Age != nil {
		out.Age = intPtr(*u.Age)
	}
	if u.Income != nil {
		out.Income = intPtr(*u.Income)
	}
	return out
}

// Complete reports whether both age and income are known.
func (u UserInfo) Complete() bool {
	return u.Age != nil && u.Income != nil
}

// State is the full conversation state of one session.
type State struct {
	Messages        []Message        `json:"messages"`
	UserInfo        UserInfo         `json:"user_info"`
	EligibleSchemes []catalog.Scheme `json:"eligible_schemes"`
	SelectedScheme  *catalog.Scheme  `json:"selected_scheme,omitempty"`
	Stage           Stage            `json:"stage"`
	// CurrentIntent is the intent of the last processed turn. It is never an
	// input to classification or decision making.
	CurrentIntent Intent `json:"current_intent,omitempty"`
}

// NewState returns the state of a freshly contacted session.
func NewState() State {
	return State{
		Messages: []Message{{Role: RoleAssistant, Text: ReplyGreeting}},
		Stage:    StageIntro,
	}
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := State{
		UserInfo:      s.UserInfo.Clone(),
		Stage:         s.Stage,
		CurrentIntent: s.CurrentIntent,
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	if s.EligibleSchemes != nil {
		out.EligibleSchemes = append([]catalog.Scheme(nil), s.EligibleSchemes...)
	}
	if s.SelectedScheme != nil {
		sel := *s.SelectedScheme
		out.SelectedScheme = &sel
	}
	return out
}

// EligibleNames lists the names of the schemes under discussion.
func (s State) EligibleNames() []string {
	names := make([]string, len(s.EligibleSchemes))
	for i, sc := range s.EligibleSchemes {
		names[i] = sc.Name
	}
	return names
}

// Delta is the set of changes a decision makes to the conversation state.
type Delta struct {
	// UserInfo replaces the stored facts when non-nil.
	UserInfo *UserInfo
	// SetEligible replaces the eligible list with EligibleSchemes.
	SetEligible     bool
	EligibleSchemes []catalog.Scheme
	// SelectedScheme replaces the selection when non-nil.
	SelectedScheme *catalog.Scheme
	ClearSelected  bool
}

// Decision is the engine's answer to one classified turn.
type Decision struct {
	Utterance string
	Stage     Stage
	Delta     Delta
}

// Next returns the state after a turn: the delta applied, the stage moved,
// and the user and assistant messages appended. s is not modified.
func (s State) Next(userText string, intent Intent, d Decision) State {
	next := s.Clone()
	if d.Delta.UserInfo != nil {
		next.UserInfo = d.Delta.UserInfo.Clone()
	}
	if d.Delta.SetEligible {
		next.EligibleSchemes = append([]catalog.Scheme{}, d.Delta.EligibleSchemes...)
	}
	if d.Delta.ClearSelected {
		next.SelectedScheme = nil
	}
	if d.Delta.SelectedScheme != nil {
		sel := *d.Delta.SelectedScheme
		next.SelectedScheme = &sel
	}
	next.Stage = d.Stage
	next.CurrentIntent = intent
	next.Messages = append(next.Messages,
		Message{Role: RoleUser, Text: userText},
		Message{Role: RoleAssistant, Text: d.Utterance},
	)
	return next
}

func intPtr(v int) *int { return &v }
