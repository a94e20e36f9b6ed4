package config

// ServiceType identifies one of the model-backed services a slot can serve.
type ServiceType string

const (
	ServiceChat      ServiceType = "chat"
	ServiceEmbedding ServiceType = "embedding"
	ServiceReranker  ServiceType = "reranker"
	ServiceOCR       ServiceType = "ocr"
)

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderOpenAI      ProviderType = "openai"
	ProviderDeepSeek    ProviderType = "deepseek"
	ProviderMoonshot    ProviderType = "moonshot"
	ProviderZhipu       ProviderType = "zhipu"
	ProviderSiliconFlow ProviderType = "siliconflow"
	ProviderOllama      ProviderType = "ollama"
	ProviderOther       ProviderType = "other"
)

// SlotNumber is the position of a slot within a service (1 or 2).
type SlotNumber int

const (
	Slot1 SlotNumber = 1
	Slot2 SlotNumber = 2
)

// ProviderSlot is one configurable provider binding for a service.
// Each service carries two slots; which slot is consulted depends on the
// service (priority order for chat, the active flag for embeddings,
// weights for rerankers, fixed slot order for OCR).
type ProviderSlot struct {
	Enabled    bool         `yaml:"enabled" koanf:"enabled" json:"enabled"`
	Provider   ProviderType `yaml:"provider" koanf:"provider" json:"provider"`
	CustomName string       `yaml:"custom_name" koanf:"custom_name" json:"custom_name"`
	BaseURL    string       `yaml:"base_url" koanf:"base_url" json:"base_url"`
	APIKey     string       `yaml:"api_key" koanf:"api_key" json:"api_key"`
	ModelName  string       `yaml:"model_name" koanf:"model_name" json:"model_name"`
	Priority   int          `yaml:"priority" koanf:"priority" json:"priority"`
	Active     bool         `yaml:"active" koanf:"active" json:"active"`
	Weight     float64      `yaml:"weight" koanf:"weight" json:"weight"`
}

// ServiceSlots holds the two slots of one service.
type ServiceSlots struct {
	Slot1 ProviderSlot `yaml:"slot_1" koanf:"slot_1"`
	Slot2 ProviderSlot `yaml:"slot_2" koanf:"slot_2"`
}

// Slot returns a pointer to the slot with the given number, or nil if the
// number is out of range.
func (s *ServiceSlots) Slot(n SlotNumber) *ProviderSlot {
	switch n {
	case Slot1:
		return &s.Slot1
	case Slot2:
		return &s.Slot2
	}
	return nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr" koanf:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// PathsConfig holds on-disk storage locations.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" koanf:"data_dir"`
	Database  string `yaml:"database" koanf:"database"`
	VectorDir string `yaml:"vector_dir" koanf:"vector_dir"`
	IndexDir  string `yaml:"index_dir" koanf:"index_dir"`
	UploadDir string `yaml:"upload_dir" koanf:"upload_dir"`
}

// KnowledgeConfig holds retrieval and indexing tunables.
type KnowledgeConfig struct {
	ChunkSize          int     `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	TopK               int     `yaml:"top_k" koanf:"top_k"`
	RerankTopN         int     `yaml:"rerank_top_n" koanf:"rerank_top_n"`
	RelevanceThreshold float64 `yaml:"relevance_threshold" koanf:"relevance_threshold"`
	RRFConstant        int     `yaml:"rrf_constant" koanf:"rrf_constant"`
	HyDE               bool    `yaml:"hyde" koanf:"hyde"`
	EmbeddingBatchSize int     `yaml:"embedding_batch_size" koanf:"embedding_batch_size"`
}

// ConversationConfig holds chat history management tunables.
type ConversationConfig struct {
	ContextBudget    int `yaml:"context_budget" koanf:"context_budget"`
	SummaryMaxTokens int `yaml:"summary_max_tokens" koanf:"summary_max_tokens"`
}

// Config is the top-level saga configuration, corresponding to saga.yml.
type Config struct {
	Server       ServerConfig       `yaml:"server" koanf:"server"`
	Paths        PathsConfig        `yaml:"paths" koanf:"paths"`
	Chat         ServiceSlots       `yaml:"chat" koanf:"chat"`
	Embedding    ServiceSlots       `yaml:"embedding" koanf:"embedding"`
	Reranker     ServiceSlots       `yaml:"reranker" koanf:"reranker"`
	OCR          ServiceSlots       `yaml:"ocr" koanf:"ocr"`
	Knowledge    KnowledgeConfig    `yaml:"knowledge" koanf:"knowledge"`
	Conversation ConversationConfig `yaml:"conversation" koanf:"conversation"`
}

// Service returns the slot pair for the given service type, or nil if the
// service is not recognized.
func (c *Config) Service(t ServiceType) *ServiceSlots {
	switch t {
	case ServiceChat:
		return &c.Chat
	case ServiceEmbedding:
		return &c.Embedding
	case ServiceReranker:
		return &c.Reranker
	case ServiceOCR:
		return &c.OCR
	}
	return nil
}
