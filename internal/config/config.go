package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SAGA_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: SAGA_CHAT.SLOT_1.API_KEY and the like.
	// Double underscores map to nesting separators.
	if err := k.Load(env.Provider("SAGA_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "SAGA_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI:      true,
	ProviderDeepSeek:    true,
	ProviderMoonshot:    true,
	ProviderZhipu:       true,
	ProviderSiliconFlow: true,
	ProviderOllama:      true,
	ProviderOther:       true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir is required")
	}

	for _, svc := range []ServiceType{ServiceChat, ServiceEmbedding, ServiceReranker, ServiceOCR} {
		slots := c.Service(svc)
		for _, n := range []SlotNumber{Slot1, Slot2} {
			slot := slots.Slot(n)
			if slot.Provider != "" && !validProviders[slot.Provider] {
				return fmt.Errorf("invalid provider %q for %s slot %d", slot.Provider, svc, n)
			}
			if slot.Provider == ProviderOther && slot.Enabled && slot.CustomName == "" {
				return fmt.Errorf("%s slot %d: custom_name is required when provider is %q", svc, n, ProviderOther)
			}
		}
	}

	if c.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("knowledge.chunk_size must be positive")
	}
	if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("knowledge.chunk_overlap must be non-negative and smaller than chunk_size")
	}
	if c.Knowledge.TopK <= 0 {
		return fmt.Errorf("knowledge.top_k must be positive")
	}
	if c.Knowledge.RerankTopN <= 0 {
		return fmt.Errorf("knowledge.rerank_top_n must be positive")
	}
	if c.Knowledge.RRFConstant <= 0 {
		return fmt.Errorf("knowledge.rrf_constant must be positive")
	}
	if c.Knowledge.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("knowledge.embedding_batch_size must be positive")
	}

	if c.Conversation.ContextBudget <= 0 {
		return fmt.Errorf("conversation.context_budget must be positive")
	}

	return nil
}

// ResolvePaths fills in derived path defaults relative to the data
// directory for any path left empty.
func (c *Config) ResolvePaths() {
	if c.Paths.Database == "" {
		c.Paths.Database = filepath.Join(c.Paths.DataDir, "saga.db")
	}
	if c.Paths.VectorDir == "" {
		c.Paths.VectorDir = filepath.Join(c.Paths.DataDir, "vectors")
	}
	if c.Paths.IndexDir == "" {
		c.Paths.IndexDir = filepath.Join(c.Paths.DataDir, "indexes")
	}
	if c.Paths.UploadDir == "" {
		c.Paths.UploadDir = filepath.Join(c.Paths.DataDir, "uploads")
	}
}

// DefaultBaseURL returns the conventional API base URL for the given
// provider, or empty for providers that require an explicit base_url.
func DefaultBaseURL(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderDeepSeek:
		return "https://api.deepseek.com/v1"
	case ProviderMoonshot:
		return "https://api.moonshot.cn/v1"
	case ProviderZhipu:
		return "https://open.bigmodel.cn/api/paas/v4"
	case ProviderSiliconFlow:
		return "https://api.siliconflow.cn/v1"
	case ProviderOllama:
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}
