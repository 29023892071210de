// Package world defines the versioned World Definition document model and the
// per-session game state it drives. A World Definition is authored externally
// as JSON (or YAML), normalized by pkg/migrate on load, and then consumed
// read-only by the matching, assembly, and rules packages.
package world

// CurrentVersion is the schema version this package's types describe.
// Older documents are normalized by pkg/migrate before decoding.
const CurrentVersion = "5.0.0"

// VarType is the declared type of a Variable.
type VarType string

const (
	VarNumber  VarType = "number"
	VarString  VarType = "string"
	VarBoolean VarType = "boolean"
)

// Position is an entry's injection slot in the assembled prompt.
type Position string

const (
	PosTop         Position = "top"
	PosBeforeChar  Position = "before_char"
	PosCharacter   Position = "character"
	PosAfterChar   Position = "after_char"
	PosPersona     Position = "persona"
	PosBottom      Position = "bottom"
	PosDepth       Position = "depth"
	PosPostHistory Position = "post_history"
	PosGreeting    Position = "greeting"
)

// SystemSlots is the fixed slot order for system-prompt assembly.
// depth, post_history and greeting entries are never part of the system
// prompt; they are surfaced through their own accessors.
var SystemSlots = []Position{
	PosTop, PosBeforeChar, PosCharacter, PosAfterChar, PosPersona, PosBottom,
}

// Role describes what kind of content an entry carries.
type Role string

const (
	RoleSystem    Role = "system"
	RoleCharacter Role = "character"
	RoleLore      Role = "lore"
	RolePersona   Role = "persona"
	RoleGreeting  Role = "greeting"
)

// Operator is a Condition comparison operator.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
)

// Operation is an Effect mutation kind.
type Operation string

const (
	OpSet      Operation = "set"
	OpAdd      Operation = "add"
	OpSubtract Operation = "subtract"
	OpMultiply Operation = "multiply"
	OpToggle   Operation = "toggle"
	OpAppend   Operation = "append"
)

// Operations lists every recognized effect operation, for prompt
// construction and response filtering.
var Operations = []Operation{OpSet, OpAdd, OpSubtract, OpMultiply, OpToggle, OpAppend}

// IsValidOperation reports whether s names a recognized operation.
func IsValidOperation(s string) bool {
	for _, op := range Operations {
		if string(op) == s {
			return true
		}
	}
	return false
}

// AudioAction is an AudioEffect playback instruction.
type AudioAction string

const (
	AudioPlay      AudioAction = "play"
	AudioStop      AudioAction = "stop"
	AudioCrossfade AudioAction = "crossfade"
	AudioVolume    AudioAction = "volume"
)

// AudioActions lists every recognized audio action.
var AudioActions = []AudioAction{AudioPlay, AudioStop, AudioCrossfade, AudioVolume}

// IsValidAudioAction reports whether s names a recognized audio action.
func IsValidAudioAction(s string) bool {
	for _, a := range AudioActions {
		if string(a) == s {
			return true
		}
	}
	return false
}

// ConditionLogic combines a condition list.
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "AND"
	LogicOr  ConditionLogic = "OR"
)

// SecondaryLogic is the secondary-keyword gate of a WorldEntry.
type SecondaryLogic string

const (
	SecondaryAndAny SecondaryLogic = "AND_ANY" // at least one secondary matches
	SecondaryAndAll SecondaryLogic = "AND_ALL" // every secondary matches
	SecondaryNotAny SecondaryLogic = "NOT_ANY" // no secondary matches
	SecondaryNotAll SecondaryLogic = "NOT_ALL" // not every secondary matches
)

// Trigger selects how a Rule fires.
type Trigger string

const (
	TriggerCondition Trigger = "condition"
	TriggerAction    Trigger = "action"
)

// Notification is a Rule's model-notification policy.
type Notification string

const (
	NotifySilent      Notification = "silent"
	NotifyAlways      Notification = "always"
	NotifyConditional Notification = "conditional"
)

// Variable declares one piece of mutable session state.
// Identity is ID, unique within a World Definition.
type Variable struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         VarType  `json:"type"`
	DefaultValue any      `json:"defaultValue"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Category     string   `json:"category,omitempty"`
}

// Condition is a pure predicate over a GameState snapshot.
type Condition struct {
	VariableID string   `json:"variableId"`
	Operator   Operator `json:"operator"`
	Value      any      `json:"value"`
}

// Effect is a single declarative state mutation instruction.
type Effect struct {
	VariableID string    `json:"variableId"`
	Operation  Operation `json:"operation"`
	Value      any       `json:"value,omitempty"`
}

// AudioEffect is a playback instruction for an audio track.
type AudioEffect struct {
	TrackID      string      `json:"trackId"`
	Action       AudioAction `json:"action"`
	Volume       *float64    `json:"volume,omitempty"`
	FadeDuration *float64    `json:"fadeDuration,omitempty"`
}

// AudioTrack is an authored audio asset reference.
type AudioTrack struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	URL    string  `json:"url,omitempty"`
	Loop   bool    `json:"loop,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// WorldEntry is the unit of injectable content.
//
// Invariant: position "depth" entries carry Depth; position "greeting"
// entries are excluded from every system-prompt assembly path.
type WorldEntry struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"`
	Content               string         `json:"content"`
	Role                  Role           `json:"role,omitempty"`
	Position              Position       `json:"position"`
	Depth                 *int           `json:"depth,omitempty"`
	AlwaysSend            bool           `json:"alwaysSend"`
	Keywords              []string       `json:"keywords"`
	SecondaryKeywords     []string       `json:"secondaryKeywords,omitempty"`
	SecondaryKeywordLogic SecondaryLogic `json:"secondaryKeywordLogic,omitempty"`
	Conditions            []Condition    `json:"conditions,omitempty"`
	ConditionLogic        ConditionLogic `json:"conditionLogic,omitempty"`
	Priority              int            `json:"priority"`
	Enabled               bool           `json:"enabled"`
	MatchWholeWords       bool           `json:"matchWholeWords,omitempty"`
	UseFuzzyMatch         bool           `json:"useFuzzyMatch,omitempty"`
	PreventRecursion      bool           `json:"preventRecursion,omitempty"`
	ExcludeRecursion      bool           `json:"excludeRecursion,omitempty"`
	Group                 string         `json:"group,omitempty"`
}

// Rule is a declarative condition-to-effect mapping. Rules are data: they
// are evaluated by pkg/rules and never mutate themselves.
type Rule struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name,omitempty"`
	Conditions             []Condition    `json:"conditions"`
	ConditionLogic         ConditionLogic `json:"conditionLogic,omitempty"`
	Effects                []Effect       `json:"effects"`
	AudioEffects           []AudioEffect  `json:"audioEffects,omitempty"`
	Priority               int            `json:"priority"`
	Trigger                Trigger        `json:"trigger"`
	ActionID               string         `json:"actionId,omitempty"`
	Notification           Notification   `json:"notification,omitempty"`
	NotificationTemplate   string         `json:"notificationTemplate,omitempty"`
	NotificationConditions []Condition    `json:"notificationConditions,omitempty"`
}

// GameComponent is an authored UI/state widget definition. The engine only
// validates its variable references; rendering is external.
type GameComponent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name,omitempty"`
	VariableID string         `json:"variableId,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
}

// DisplayTransform rewrites a model reply for display. Only its presence
// matters to the engine (it drives the v3 to v4 uiMode migration).
type DisplayTransform struct {
	ID      string `json:"id"`
	Pattern string `json:"pattern,omitempty"`
	Replace string `json:"replace,omitempty"`
}

// Settings holds world-level knobs consumed by the engine.
type Settings struct {
	CharacterName         string             `json:"characterName,omitempty"`
	UserName              string             `json:"userName,omitempty"`
	Model                 string             `json:"model,omitempty"`
	LorebookBudgetPercent float64            `json:"lorebookBudgetPercent,omitempty"`
	RecursionDepth        int                `json:"recursionDepth,omitempty"`
	StructuredOutput      bool               `json:"structuredOutput,omitempty"`
	UIMode                string             `json:"uiMode,omitempty"` // vestigial since v5
	FullScreenComponent   bool               `json:"fullScreenComponent,omitempty"`
	DisplayTransforms     []DisplayTransform `json:"displayTransforms,omitempty"`
}

// WorldDefinition is the aggregate root of authored content.
type WorldDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Version     string          `json:"version"`
	Entries     []WorldEntry    `json:"entries"`
	Variables   []Variable      `json:"variables"`
	Rules       []Rule          `json:"rules"`
	Components  []GameComponent `json:"components"`
	AudioTracks []AudioTrack    `json:"audioTracks"`
	Settings    Settings        `json:"settings"`
}

// Variable returns the declared variable with the given id, or nil.
func (w *WorldDefinition) Variable(id string) *Variable {
	for i := range w.Variables {
		if w.Variables[i].ID == id {
			return &w.Variables[i]
		}
	}
	return nil
}

// AudioTrack returns the declared track with the given id, or nil.
func (w *WorldDefinition) AudioTrack(id string) *AudioTrack {
	for i := range w.AudioTracks {
		if w.AudioTracks[i].ID == id {
			return &w.AudioTracks[i]
		}
	}
	return nil
}

// GameState is the mutable per-session variable store. One instance per play
// session, created from variable defaults and mutated only through Effects.
// Mutation goes through pkg/gamestate; everything here is plain data so the
// snapshot serializes cleanly for the external session store.
type GameState struct {
	WorldID   string         `json:"worldId"`
	Variables map[string]any `json:"variables"`
	TurnCount int            `json:"turnCount"`
	Metadata  map[string]any `json:"metadata"`
}

// Metadata keys written by the session layer and read by macros.
const (
	MetaLastMessage       = "lastMessage"
	MetaLastUserMessage   = "lastUserMessage"
	MetaLastCharMessage   = "lastCharMessage"
	MetaLastUserMessageAt = "lastUserMessageAt" // unix millis
	MetaModel             = "model"
)

// NewGameState creates a fresh state from the world's variable defaults.
func NewGameState(w *WorldDefinition) *GameState {
	vars := make(map[string]any, len(w.Variables))
	for _, v := range w.Variables {
		vars[v.ID] = v.DefaultValue
	}
	return &GameState{
		WorldID:   w.ID,
		Variables: vars,
		Metadata:  map[string]any{},
	}
}

// Clone returns a deep-ish copy suitable for throwaway evaluation and
// persistence round-trips. Values themselves are JSON scalars and are
// copied by assignment.
func (s *GameState) Clone() *GameState {
	vars := make(map[string]any, len(s.Variables))
	for k, v := range s.Variables {
		vars[k] = v
	}
	meta := make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		meta[k] = v
	}
	return &GameState{
		WorldID:   s.WorldID,
		Variables: vars,
		TurnCount: s.TurnCount,
		Metadata:  meta,
	}
}
