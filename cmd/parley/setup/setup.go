// Package setup wires configuration, logging, storage and the completion
// client for parley's commands.
package setup

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/papercomputeco/parley/cmd/parley/sqlitepath"
	"github.com/papercomputeco/parley/pkg/completion"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/merkle"
	"github.com/papercomputeco/parley/pkg/transcript"
	"github.com/papercomputeco/parley/pkg/vectorstore"
)

// Flags are the persistent flags of the root command.
type Flags struct {
	ConfigPath string
	Debug      bool
}

// StoreMode selects how the conversation store is opened.
type StoreMode int

const (
	// StoreConfigured opens SQLite only when a path is configured.
	StoreConfigured StoreMode = iota
	// StoreAlways falls back to an in-memory store.
	StoreAlways
)

// OpenOption tunes Open.
type OpenOption func(*openOptions)

type openOptions struct {
	logLevel zapcore.Level
}

// Quiet logs warnings and errors only, for one-shot and interactive
// commands whose stderr should stay clean. --debug still wins.
func Quiet() OpenOption {
	return func(o *openOptions) { o.logLevel = zap.WarnLevel }
}

// Env is everything a command needs to talk to the provider.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
	Client *completion.Client

	// Storer is nil when no conversation store is in use.
	Storer merkle.Storer
}

// Open loads the configuration and builds an Env. sqliteOverride takes
// precedence over the configured storage path.
func Open(flags *Flags, sqliteOverride string, mode StoreMode, opts ...OpenOption) (*Env, error) {
	o := openOptions{logLevel: zap.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewLoggerAt(o.logLevel, flags.Debug)
	env := &Env{Config: cfg, Logger: log}

	clientOpts := []completion.Option{
		completion.WithLogger(log),
		completion.WithTranscript(transcript.New(cfg.Transcript)),
	}

	path := sqliteOverride
	if path == "" {
		path = cfg.Storage.SQLite
	}
	switch {
	case path != "":
		resolved, err := sqlitepath.ResolveSQLitePath(path)
		if err != nil {
			return nil, err
		}
		s, err := merkle.NewSQLiteStorer(resolved)
		if err != nil {
			return nil, fmt.Errorf("could not open conversation store %s: %w", resolved, err)
		}
		log.Debug("using SQLite storage", zap.String("path", resolved))
		env.Storer = s
	case mode == StoreAlways:
		log.Debug("using in-memory storage")
		env.Storer = merkle.NewMemoryStorer()
	}
	if env.Storer != nil {
		clientOpts = append(clientOpts, completion.WithRecorder(merkle.NewRecorder(env.Storer, log)))
	}

	env.Client, err = completion.New(cfg.Completion(), clientOpts...)
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// OpenVectors opens the embedding store at path, or the configured one.
func (e *Env) OpenVectors(path string) (*vectorstore.Store, error) {
	if path == "" {
		path = e.Config.Vectors.SQLite
	}
	if path == "" {
		return nil, fmt.Errorf("no vector store configured: set [vectors] sqlite or pass --vectors")
	}
	store, err := vectorstore.Open(path, completion.EmbeddingDimensions)
	if err != nil {
		return nil, fmt.Errorf("could not open vector store %s: %w", path, err)
	}
	return store, nil
}

// Close releases the store and flushes the logger.
func (e *Env) Close() error {
	var err error
	if e.Storer != nil {
		err = e.Storer.Close()
	}
	_ = e.Logger.Sync()
	return err
}
