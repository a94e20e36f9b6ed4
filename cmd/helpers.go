package cmd

import (
	"fmt"

	"github.com/sagalabs/saga/internal/config"
	"github.com/sagalabs/saga/internal/conversation"
	"github.com/sagalabs/saga/internal/db"
	"github.com/sagalabs/saga/internal/knowledge"
	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/registry"
	"github.com/sagalabs/saga/internal/retriever"
	"github.com/sagalabs/saga/internal/tokenizer"
	"github.com/sagalabs/saga/internal/vectordb"
)

// app wires together every component behind the commands.
type app struct {
	cfg       *config.Config
	db        *db.DB
	registry  *registry.Registry
	gateway   *llm.Gateway
	vectors   *vectordb.Store
	knowledge *knowledge.Store
	indexer   *knowledge.Indexer
	retriever *retriever.Retriever
	topics    *conversation.Store
	chat      *conversation.Service
	prompts   *prompts.Store
}

// openApp loads the config and opens all stores.
func openApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `saga init` to create a config file", err)
	}
	cfg.ResolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		return nil, err
	}
	vectors, err := vectordb.Open(cfg.Paths.VectorDir)
	if err != nil {
		database.Close()
		return nil, err
	}

	reg := registry.New(cfg, cfgFile)
	gw := llm.NewGateway(reg)

	kstore := knowledge.NewStore(database)
	indexer := knowledge.NewIndexer(kstore, vectors, gw, reg, cfg.Paths.IndexDir)
	ret := retriever.New(reg, gw, vectors, indexer, kstore)

	topics := conversation.NewStore(database)
	promptStore, err := prompts.NewStore(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	conv := reg.Conversation()
	ctxmgr := conversation.NewContextManager(tokenizer.New(), gw, topics, conv.ContextBudget, conv.SummaryMaxTokens)
	chat := conversation.NewService(topics, promptStore, ret, gw, ctxmgr)

	return &app{
		cfg:       cfg,
		db:        database,
		registry:  reg,
		gateway:   gw,
		vectors:   vectors,
		knowledge: kstore,
		indexer:   indexer,
		retriever: ret,
		topics:    topics,
		chat:      chat,
		prompts:   promptStore,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	a.db.Close()
}
