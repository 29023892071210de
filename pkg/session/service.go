// Package session drives complete conversation turns: it loads a migrated
// world and its session state, runs the lorebook selection and prompt
// assembly, hands the message list to the generation provider, parses the
// reply back into effects, applies them, and persists the result.
//
// A Service serializes nothing itself; callers must keep at most one
// in-flight turn per session.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fablekit/fablekit/internal/store"
	"github.com/fablekit/fablekit/pkg/gamestate"
	"github.com/fablekit/fablekit/pkg/llm"
	"github.com/fablekit/fablekit/pkg/match"
	"github.com/fablekit/fablekit/pkg/migrate"
	"github.com/fablekit/fablekit/pkg/parse"
	"github.com/fablekit/fablekit/pkg/prompt"
	"github.com/fablekit/fablekit/pkg/rules"
	"github.com/fablekit/fablekit/pkg/world"
)

// historyWindow is how many recent messages feed lorebook matching and the
// provider message list.
const historyWindow = 20

// Config tunes the turn pipeline.
type Config struct {
	TokenBudget    int // lorebook budget in estimated tokens; 0 means default
	RecursionDepth int // lorebook recursion depth, clamped by pkg/match
}

// Service coordinates sessions over a store and a generation provider.
type Service struct {
	store    store.Storer
	provider llm.Provider
	cfg      Config
}

// NewService creates a session service.
func NewService(s store.Storer, p llm.Provider, cfg Config) *Service {
	return &Service{store: s, provider: p, cfg: cfg}
}

// ImportWorld migrates a raw world document to the current version and
// persists the normalized form. Returns the decoded definition.
func (s *Service) ImportWorld(data []byte) (*world.WorldDefinition, error) {
	w, err := migrate.Load(data)
	if err != nil {
		return nil, err
	}
	if w.ID == "" {
		w.ID = generateID()
	}
	w.Version = world.CurrentVersion

	normalized, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("session: encode world: %w", err)
	}
	now := time.Now().UnixMilli()
	rec := &store.World{
		ID:        w.ID,
		Name:      w.Name,
		Version:   w.Version,
		Document:  normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutWorld(rec); err != nil {
		return nil, fmt.Errorf("session: store world: %w", err)
	}
	return w, nil
}

// LoadWorld loads a stored world, re-running the migration chain on the
// document (a no-op for current documents).
func (s *Service) LoadWorld(id string) (*world.WorldDefinition, error) {
	rec, err := s.store.GetWorld(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("session: world not found: %s", id)
	}
	return migrate.Load(rec.Document)
}

// CreateSession starts a play session with state built from the world's
// variable defaults.
func (s *Service) CreateSession(worldID, name string) (*store.Session, error) {
	w, err := s.LoadWorld(worldID)
	if err != nil {
		return nil, err
	}
	state := world.NewGameState(w)
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("session: encode state: %w", err)
	}
	now := time.Now().UnixMilli()
	sess := &store.Session{
		ID:        generateID(),
		WorldID:   worldID,
		Name:      name,
		State:     encoded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(sess); err != nil {
		return nil, fmt.Errorf("session: create session: %w", err)
	}
	return sess, nil
}

// RestartSession rebuilds a session's state from variable defaults,
// discarding history.
func (s *Service) RestartSession(sessionID string) error {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session: session not found: %s", sessionID)
	}
	w, err := s.LoadWorld(sess.WorldID)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(world.NewGameState(w))
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	if err := s.store.DeleteMessages(sessionID); err != nil {
		return err
	}
	return s.store.SaveSessionState(sessionID, encoded, 0)
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	Narrative     string
	Effects       []world.Effect
	AudioEffects  []world.AudioEffect
	Choices       []string
	Notifications []string
	Greeting      string
}

// RunTurn executes one full conversation turn for userText.
func (s *Service) RunTurn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("session: no generation provider configured")
	}
	sess, w, mgr, err := s.open(sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	if err := s.store.AddMessage(&store.Message{
		ID:        generateID(),
		SessionID: sessionID,
		Role:      llm.RoleUser,
		Content:   userText,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("session: store user message: %w", err)
	}
	mgr.SetMetadata(world.MetaLastMessage, userText)
	mgr.SetMetadata(world.MetaLastUserMessage, userText)
	mgr.SetMetadata(world.MetaLastUserMessageAt, float64(now))

	history, err := s.store.RecentMessages(sessionID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("session: load history: %w", err)
	}

	texts := make([]string, len(history))
	for i, m := range history {
		texts[i] = m.Content
	}
	sel := match.Select(w.Entries, texts, mgr.State(), s.budget(w), s.cfg.RecursionDepth)
	asm := prompt.New(w, mgr.State(), sel)

	messages := buildMessages(asm, history)
	params := llm.Params{Model: w.Settings.Model}
	if w.Settings.StructuredOutput {
		params.ResponseSchema = parse.Schema(w)
	}

	raw, err := s.provider.Complete(ctx, messages, params)
	if err != nil {
		return nil, fmt.Errorf("session: completion failed: %w", err)
	}

	// Structured first when the world asks for it; the directive parser is
	// the graceful fallback either way.
	var parsed parse.Result
	if w.Settings.StructuredOutput {
		var ok bool
		if parsed, ok = parse.ParseStructured(raw); !ok {
			parsed = parse.ParseDirectives(raw)
		}
	} else {
		parsed = parse.ParseDirectives(raw)
	}

	mgr.ApplyEffects(parsed.Effects)
	cascade := rules.Evaluate(mgr.State(), w.Rules)
	mgr.ApplyEffects(cascade.Effects)

	mgr.IncrementTurn()
	mgr.SetMetadata(world.MetaLastMessage, parsed.CleanText)
	mgr.SetMetadata(world.MetaLastCharMessage, parsed.CleanText)

	if err := s.store.AddMessage(&store.Message{
		ID:        generateID(),
		SessionID: sessionID,
		Role:      llm.RoleAssistant,
		Content:   parsed.CleanText,
		CreatedAt: time.Now().UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("session: store assistant message: %w", err)
	}
	if err := s.save(sess.ID, mgr); err != nil {
		return nil, err
	}

	return &TurnResult{
		Narrative:     parsed.CleanText,
		Effects:       parsed.Effects,
		AudioEffects:  append(parsed.AudioEffects, cascade.AudioEffects...),
		Choices:       parsed.Choices,
		Notifications: cascade.Notifications,
	}, nil
}

// TriggerAction fires the action-triggered rules bound to actionID, applies
// their effects, and persists. Notifications are returned for the caller to
// feed into the next model turn.
func (s *Service) TriggerAction(sessionID, actionID string) (*TurnResult, error) {
	sess, w, mgr, err := s.open(sessionID)
	if err != nil {
		return nil, err
	}
	res := rules.EvaluateAction(actionID, mgr.State(), w.Rules, w.Variables)
	mgr.ApplyEffects(res.Effects)
	if err := s.save(sess.ID, mgr); err != nil {
		return nil, err
	}
	return &TurnResult{
		Effects:       res.Effects,
		AudioEffects:  res.AudioEffects,
		Notifications: res.Notifications,
	}, nil
}

// Greeting assembles the session's greeting surface, used when history is
// still empty.
func (s *Service) Greeting(sessionID string) (string, error) {
	_, w, mgr, err := s.open(sessionID)
	if err != nil {
		return "", err
	}
	asm := prompt.New(w, mgr.State(), match.Selection{})
	return asm.Greeting(), nil
}

func (s *Service) open(sessionID string) (*store.Session, *world.WorldDefinition, *gamestate.Manager, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if sess == nil {
		return nil, nil, nil, fmt.Errorf("session: session not found: %s", sessionID)
	}
	w, err := s.LoadWorld(sess.WorldID)
	if err != nil {
		return nil, nil, nil, err
	}
	var state world.GameState
	if err := json.Unmarshal(sess.State, &state); err != nil {
		return nil, nil, nil, fmt.Errorf("session: decode state: %w", err)
	}
	if state.Metadata == nil {
		state.Metadata = map[string]any{}
	}
	if state.Variables == nil {
		state.Variables = map[string]any{}
	}
	return sess, w, gamestate.NewManagerWithState(w, &state), nil
}

func (s *Service) save(sessionID string, mgr *gamestate.Manager) error {
	encoded, err := json.Marshal(mgr.Snapshot())
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	if err := s.store.SaveSessionState(sessionID, encoded, mgr.TurnCount()); err != nil {
		return fmt.Errorf("session: save state: %w", err)
	}
	return nil
}

// budget resolves the lorebook token budget: the world's percentage setting
// scales the configured budget when present.
func (s *Service) budget(w *world.WorldDefinition) int {
	budget := s.cfg.TokenBudget
	if budget <= 0 {
		budget = match.DefaultTokenBudget
	}
	if pct := w.Settings.LorebookBudgetPercent; pct > 0 && pct <= 100 {
		budget = int(float64(budget) * pct / 100)
	}
	return budget
}

// buildMessages assembles the provider message list: system prompt, recent
// history with depth injections spliced in from the end, then post-history
// blocks.
func buildMessages(asm *prompt.Assembler, history []*store.Message) []llm.Message {
	chat := make([]llm.Message, 0, len(history)+4)
	for _, m := range history {
		chat = append(chat, llm.Message{Role: m.Role, Content: m.Content})
	}

	// Depth d splices the injection before the last d messages.
	for _, inj := range asm.DepthInjections() {
		at := len(chat) - inj.Depth
		if at < 0 {
			at = 0
		}
		msg := llm.Message{Role: llm.RoleSystem, Content: inj.Content}
		chat = append(chat[:at], append([]llm.Message{msg}, chat[at:]...)...)
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: asm.SystemPrompt()}}
	messages = append(messages, chat...)
	for _, ph := range asm.PostHistory() {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: ph})
	}
	return messages
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
