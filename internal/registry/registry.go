// Package registry resolves which provider slot serves each model-backed
// service. Selection rules differ per service: chat uses priority order
// with no fallback, embeddings use a single active slot, rerankers blend
// both configured slots, and OCR falls back from slot 1 to slot 2.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sagalabs/saga/internal/config"
)

var (
	// ErrNotConfigured is returned when a service has no usable slot.
	ErrNotConfigured = fmt.Errorf("no configured slot for service")
	// ErrNoActiveEmbedding is returned when no embedding slot is active
	// and configured.
	ErrNoActiveEmbedding = fmt.Errorf("no active embedding slot")
)

// SlotRef identifies one resolved slot of a service.
type SlotRef struct {
	Service config.ServiceType
	Number  config.SlotNumber
	Slot    config.ProviderSlot
}

// ProviderName returns the effective provider identity of the slot. For
// the "other" provider the user-supplied custom name is the identity.
func (r SlotRef) ProviderName() string {
	if r.Slot.Provider == config.ProviderOther {
		return r.Slot.CustomName
	}
	return string(r.Slot.Provider)
}

// Registry provides concurrency-safe slot resolution over a Config and
// persists slot mutations back to the config file.
type Registry struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
}

// New returns a Registry over cfg. Mutations are saved to configPath;
// pass an empty path to keep changes in memory only.
func New(cfg *config.Config, configPath string) *Registry {
	return &Registry{cfg: cfg, configPath: configPath}
}

// IsConfigured reports whether a slot is usable: enabled, with a provider
// identity and a real API key. Placeholder keys left over from templates
// do not count. Ollama needs no key.
func IsConfigured(slot *config.ProviderSlot) bool {
	if slot == nil || !slot.Enabled {
		return false
	}
	if slot.Provider == "" {
		return false
	}
	if slot.Provider == config.ProviderOther && slot.CustomName == "" {
		return false
	}
	if slot.Provider == config.ProviderOllama {
		return true
	}
	key := slot.APIKey
	if key == "" || strings.HasPrefix(key, "sk-your-") || strings.HasPrefix(key, "your-") {
		return false
	}
	return true
}

// ConfiguredSlots returns the configured slots of a service sorted by
// ascending priority.
func (r *Registry) ConfiguredSlots(svc config.ServiceType) []SlotRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configuredSlotsLocked(svc)
}

func (r *Registry) configuredSlotsLocked(svc config.ServiceType) []SlotRef {
	slots := r.cfg.Service(svc)
	if slots == nil {
		return nil
	}
	var refs []SlotRef
	for _, n := range []config.SlotNumber{config.Slot1, config.Slot2} {
		s := slots.Slot(n)
		if IsConfigured(s) {
			refs = append(refs, SlotRef{Service: svc, Number: n, Slot: *s})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Slot.Priority < refs[j].Slot.Priority
	})
	return refs
}

// ChatSlot returns the highest-priority configured chat slot. There is
// no fallback between chat slots; callers get exactly one.
func (r *Registry) ChatSlot() (SlotRef, error) {
	refs := r.ConfiguredSlots(config.ServiceChat)
	if len(refs) == 0 {
		return SlotRef{}, fmt.Errorf("chat: %w", ErrNotConfigured)
	}
	return refs[0], nil
}

// ActiveEmbeddingSlot returns the embedding slot marked active, if it is
// configured.
func (r *Registry) ActiveEmbeddingSlot() (SlotRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range []config.SlotNumber{config.Slot1, config.Slot2} {
		s := r.cfg.Embedding.Slot(n)
		if s.Active && IsConfigured(s) {
			return SlotRef{Service: config.ServiceEmbedding, Number: n, Slot: *s}, nil
		}
	}
	return SlotRef{}, ErrNoActiveEmbedding
}

// SetActiveEmbeddingSlot marks the given embedding slot active and clears
// the other, then persists the config. At most one slot is active at any
// time.
func (r *Registry) SetActiveEmbeddingSlot(n config.SlotNumber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.cfg.Embedding.Slot(n)
	if target == nil {
		return fmt.Errorf("invalid embedding slot %d", n)
	}
	if !IsConfigured(target) {
		return fmt.Errorf("embedding slot %d: %w", n, ErrNotConfigured)
	}

	r.cfg.Embedding.Slot1.Active = n == config.Slot1
	r.cfg.Embedding.Slot2.Active = n == config.Slot2

	return r.saveLocked()
}

// RerankerSlots returns the configured reranker slots in slot order.
func (r *Registry) RerankerSlots() []SlotRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var refs []SlotRef
	for _, n := range []config.SlotNumber{config.Slot1, config.Slot2} {
		s := r.cfg.Reranker.Slot(n)
		if IsConfigured(s) {
			refs = append(refs, SlotRef{Service: config.ServiceReranker, Number: n, Slot: *s})
		}
	}
	return refs
}

// OCRSlots returns the configured OCR slots in slot order. Callers try
// slot 1 first and fall back to slot 2.
func (r *Registry) OCRSlots() []SlotRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var refs []SlotRef
	for _, n := range []config.SlotNumber{config.Slot1, config.Slot2} {
		s := r.cfg.OCR.Slot(n)
		if IsConfigured(s) {
			refs = append(refs, SlotRef{Service: config.ServiceOCR, Number: n, Slot: *s})
		}
	}
	return refs
}

// Slot returns a copy of the requested slot.
func (r *Registry) Slot(svc config.ServiceType, n config.SlotNumber) (config.ProviderSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slots := r.cfg.Service(svc)
	if slots == nil {
		return config.ProviderSlot{}, fmt.Errorf("unknown service %q", svc)
	}
	s := slots.Slot(n)
	if s == nil {
		return config.ProviderSlot{}, fmt.Errorf("invalid slot %d for service %q", n, svc)
	}
	return *s, nil
}

// UpdateSlot replaces the given slot and persists the config. Setting an
// embedding slot active through here clears the other slot's active flag.
func (r *Registry) UpdateSlot(svc config.ServiceType, n config.SlotNumber, slot config.ProviderSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := r.cfg.Service(svc)
	if slots == nil {
		return fmt.Errorf("unknown service %q", svc)
	}
	target := slots.Slot(n)
	if target == nil {
		return fmt.Errorf("invalid slot %d for service %q", n, svc)
	}

	*target = slot
	if svc == config.ServiceEmbedding && slot.Active {
		if n == config.Slot1 {
			r.cfg.Embedding.Slot2.Active = false
		} else {
			r.cfg.Embedding.Slot1.Active = false
		}
	}

	return r.saveLocked()
}

// Knowledge returns a copy of the knowledge tunables.
func (r *Registry) Knowledge() config.KnowledgeConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Knowledge
}

// Conversation returns a copy of the conversation tunables.
func (r *Registry) Conversation() config.ConversationConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Conversation
}

func (r *Registry) saveLocked() error {
	if r.configPath == "" {
		return nil
	}
	return r.cfg.Save(r.configPath)
}

// modelIDUnsafe matches characters not allowed in collection names.
var modelIDUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// ModelID returns the sanitized provider_model identity of a slot, used
// to namespace vector collections per embedding model.
func ModelID(ref SlotRef) string {
	raw := ref.ProviderName() + "_" + ref.Slot.ModelName
	return modelIDUnsafe.ReplaceAllString(raw, "_")
}

// ActiveEmbeddingModelID returns the sanitized identity of the active
// embedding model.
func (r *Registry) ActiveEmbeddingModelID() (string, error) {
	ref, err := r.ActiveEmbeddingSlot()
	if err != nil {
		return "", err
	}
	return ModelID(ref), nil
}
