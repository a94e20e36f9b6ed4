package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sagalabs/saga/internal/config"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/registry"
)

// slotView is a ProviderSlot with the API key masked for display.
type slotView struct {
	Service    string  `json:"service"`
	Number     int     `json:"number"`
	Enabled    bool    `json:"enabled"`
	Provider   string  `json:"provider"`
	CustomName string  `json:"custom_name,omitempty"`
	BaseURL    string  `json:"base_url,omitempty"`
	APIKey     string  `json:"api_key"`
	ModelName  string  `json:"model_name"`
	Priority   int     `json:"priority"`
	Active     bool    `json:"active"`
	Weight     float64 `json:"weight"`
	Configured bool    `json:"configured"`
}

var allServices = []config.ServiceType{
	config.ServiceChat, config.ServiceEmbedding, config.ServiceReranker, config.ServiceOCR,
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	var out []slotView
	for _, svc := range allServices {
		for _, n := range []config.SlotNumber{config.Slot1, config.Slot2} {
			slot, err := s.deps.Registry.Slot(svc, n)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			out = append(out, slotView{
				Service:    string(svc),
				Number:     int(n),
				Enabled:    slot.Enabled,
				Provider:   string(slot.Provider),
				CustomName: slot.CustomName,
				BaseURL:    slot.BaseURL,
				APIKey:     maskKey(slot.APIKey),
				ModelName:  slot.ModelName,
				Priority:   slot.Priority,
				Active:     slot.Active,
				Weight:     slot.Weight,
				Configured: registry.IsConfigured(&slot),
			})
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	svc := config.ServiceType(chi.URLParam(r, "service"))
	n, ok := parseSlotNumber(chi.URLParam(r, "number"))
	if !ok {
		respondError(w, http.StatusBadRequest, "slot number must be 1 or 2")
		return
	}

	var slot config.ProviderSlot
	if err := decodeJSON(r, &slot); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Registry.UpdateSlot(svc, n, slot); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetActiveEmbedding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number int `json:"number"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	n := config.SlotNumber(req.Number)
	if n != config.Slot1 && n != config.Slot2 {
		respondError(w, http.StatusBadRequest, "slot number must be 1 or 2")
		return
	}
	if err := s.deps.Registry.SetActiveEmbeddingSlot(n); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Prompts.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, all)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var p prompts.RolePrompt
	if err := decodeJSON(r, &p); err != nil || p.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	p.PromptType = prompts.TypeCustom
	if err := s.deps.Prompts.Create(&p); err != nil {
		respondPromptError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var p prompts.RolePrompt
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.Name = chi.URLParam(r, "name")
	if err := s.deps.Prompts.Update(&p); err != nil {
		respondPromptError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Prompts.Delete(chi.URLParam(r, "name")); err != nil {
		respondPromptError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleActivatePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Prompts.SetActive(chi.URLParam(r, "name")); err != nil {
		respondPromptError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (s *Server) handleGetBackground(w http.ResponseWriter, r *http.Request) {
	content, err := s.deps.Prompts.BackgroundKnowledge()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (s *Server) handleSetBackground(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Prompts.SetBackgroundKnowledge(req.Content); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	kbStats, err := s.deps.Knowledge.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	convStats, err := s.deps.Topics.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"knowledge":     kbStats,
		"conversations": convStats,
	})
}

func respondPromptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prompts.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, prompts.ErrExists):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseSlotNumber(s string) (config.SlotNumber, bool) {
	switch strings.TrimSpace(s) {
	case "1":
		return config.Slot1, true
	case "2":
		return config.Slot2, true
	}
	return 0, false
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
