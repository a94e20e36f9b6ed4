package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It configures the primary chat and embedding slots
// and saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to saga! Let's configure your assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Chat provider.
	chatSlot, err := promptSlot("chat model")
	if err != nil {
		return nil, err
	}
	chatSlot.Priority = 1
	cfg.Chat.Slot1 = *chatSlot

	// 2. Embedding provider.
	samePrompt := promptui.Select{
		Label: "Use the same provider for embeddings?",
		Items: []string{"yes", "no"},
	}
	sameIdx, _, err := samePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}

	var embSlot *ProviderSlot
	if sameIdx == 0 {
		s := *chatSlot
		embSlot = &s
	} else {
		embSlot, err = promptSlot("embedding model")
		if err != nil {
			return nil, err
		}
	}
	modelPrompt := promptui.Prompt{
		Label:   "Embedding model name",
		Default: "text-embedding-3-small",
	}
	embModel, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}
	embSlot.ModelName = embModel
	embSlot.Active = true
	embSlot.Priority = 1
	cfg.Embedding.Slot1 = *embSlot
	cfg.Embedding.Slot2 = ProviderSlot{Priority: 2}

	// 3. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: "data",
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.Paths.DataDir = dataDir

	// 4. Context budget.
	budgetPrompt := promptui.Prompt{
		Label:   "Conversation token budget",
		Default: "8192",
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	budgetStr, err := budgetPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("context budget: %w", err)
	}
	cfg.Conversation.ContextBudget, _ = strconv.Atoi(budgetStr)

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// promptSlot asks for the provider, API key and model of one slot.
func promptSlot(label string) (*ProviderSlot, error) {
	providerPrompt := promptui.Select{
		Label: fmt.Sprintf("Select %s provider", label),
		Items: []string{"openai", "deepseek", "moonshot", "zhipu", "siliconflow", "ollama", "other"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	slot := &ProviderSlot{
		Enabled:  true,
		Provider: provider,
		BaseURL:  DefaultBaseURL(provider),
	}

	if provider == ProviderOther {
		namePrompt := promptui.Prompt{Label: "Provider name"}
		name, err := namePrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("provider name: %w", err)
		}
		slot.CustomName = name

		urlPrompt := promptui.Prompt{Label: "API base URL"}
		url, err := urlPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("base url: %w", err)
		}
		slot.BaseURL = url
	}

	keyPrompt := promptui.Prompt{
		Label: fmt.Sprintf("API key for %s", providerStr),
		Mask:  '*',
	}
	key, err := keyPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("api key: %w", err)
	}
	slot.APIKey = key

	modelPrompt := promptui.Prompt{Label: fmt.Sprintf("Model name for %s", label)}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model name: %w", err)
	}
	slot.ModelName = model

	return slot, nil
}
