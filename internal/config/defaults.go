package config

// DefaultConfig returns a Config with sensible defaults. Provider slots
// start disabled; `saga init` or the settings API fills them in.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8765",
			AllowedOrigins: []string{"*"},
		},
		Paths: PathsConfig{
			DataDir: "data",
		},
		Chat: ServiceSlots{
			Slot1: ProviderSlot{Priority: 1},
			Slot2: ProviderSlot{Priority: 2},
		},
		Embedding: ServiceSlots{
			Slot1: ProviderSlot{Active: true},
		},
		Reranker: ServiceSlots{
			Slot1: ProviderSlot{Weight: 0.5},
			Slot2: ProviderSlot{Weight: 0.5},
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:          1000,
			ChunkOverlap:       150,
			TopK:               10,
			RerankTopN:         3,
			RelevanceThreshold: 1.2,
			RRFConstant:        60,
			HyDE:               true,
			EmbeddingBatchSize: 16,
		},
		Conversation: ConversationConfig{
			ContextBudget:    8192,
			SummaryMaxTokens: 512,
		},
	}
}
