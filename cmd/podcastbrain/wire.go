package main

import (
	"context"
	"fmt"

	"podcast-brain/pkg/config"
	"podcast-brain/pkg/db"
	"podcast-brain/pkg/domain"
	"podcast-brain/pkg/embedding"
	"podcast-brain/pkg/feed"
	"podcast-brain/pkg/httpclient"
	"podcast-brain/pkg/indexer"
	"podcast-brain/pkg/ingest"
	"podcast-brain/pkg/logging"
	"podcast-brain/pkg/replication"
	"podcast-brain/pkg/search"
	"podcast-brain/pkg/transcription"
)

// store is everything the commands need from the chunk and podcast store.
type store interface {
	indexer.Store
	search.Matcher
	search.ChunkLister
	replication.Store
	ListPodcasts(ctx context.Context, userID string) ([]domain.Podcast, error)
	CountChunks(ctx context.Context, podcastID string) (int, error)
}

// app holds the connected backends for one command run.
type app struct {
	cfg     *config.Config
	store   store
	schema  *db.PostgresStore
	archive *db.MongoArchive
	closers []func() error
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}
	if cfg.Mongo.URI != "" {
		archive := db.NewMongoArchive(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := archive.Connect(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to transcript archive: %w", err)
		}
		a.archive = archive
		a.closers = append(a.closers, func() error { return archive.Close(context.Background()) })
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Database.Backend {
	case config.BackendMemory:
		logging.Warn("Using the in-memory store; nothing is persisted")
		a.store = db.NewMemoryStore()

	case config.BackendPostgres:
		pg := db.NewPostgresClient(db.PostgresConfig{
			DSN:          cfg.Database.DSN,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			ConnMaxIdle:  cfg.Database.ConnMaxIdle,
			ConnMaxLife:  cfg.Database.ConnMaxLife,
		})
		if err := pg.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		s, err := db.NewPostgresStore(pg, cfg.Embedding.Dimensions)
		if err != nil {
			return err
		}
		a.store, a.schema = s, s

	case config.BackendSupabase:
		sb := db.NewSupabaseClient(db.SupabaseConfig{
			ConnectionString: cfg.Supabase.ConnectionString,
			SupabaseURL:      cfg.Supabase.URL,
			SupabaseKey:      cfg.Supabase.Key,
			Password:         cfg.Supabase.Password,
			MaxOpenConns:     cfg.Database.MaxOpenConns,
			MaxIdleConns:     cfg.Database.MaxIdleConns,
			ConnMaxIdle:      cfg.Database.ConnMaxIdle,
			ConnMaxLife:      cfg.Database.ConnMaxLife,
		})
		if err := sb.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to supabase: %w", err)
		}
		a.closers = append(a.closers, sb.Close)
		s, err := db.NewSupabaseStore(sb)
		if err != nil {
			return err
		}
		a.store = s
		if sb.HasDirectDB() {
			if a.schema, err = db.NewPostgresStore(sb, cfg.Embedding.Dimensions); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warn("Close failed: %v", err)
		}
	}
	a.closers = nil
}

func (a *app) batcher() (*embedding.Batcher, error) {
	e := a.cfg.Embedding
	provider, err := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Model:      e.Model,
		Dimensions: e.Dimensions,
		Timeout:    e.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return embedding.NewBatcher(provider,
		embedding.WithBatchSize(e.BatchSize),
		embedding.WithBatchDelay(e.BatchDelay),
	), nil
}

func (a *app) indexer() (*indexer.Service, error) {
	b, err := a.batcher()
	if err != nil {
		return nil, err
	}
	return indexer.NewService(indexer.Config{
		Store:            a.store,
		Embedder:         b,
		EmbedBatchSize:   a.cfg.Embedding.BatchSize,
		PersistBatchSize: a.cfg.Indexer.PersistBatchSize,
	})
}

func (a *app) searcher() (*search.Service, error) {
	b, err := a.batcher()
	if err != nil {
		return nil, err
	}
	return search.NewService(b, search.NewPrimaryStrategy(a.store), search.NewFallbackStrategy(a.store))
}

func (a *app) transcriber() (transcription.Provider, error) {
	t := a.cfg.Transcription
	switch t.Provider {
	case config.TranscriberPage:
		return transcription.NewPageProvider(httpclient.New(httpclient.CurlProfile, 0)), nil
	default:
		return transcription.NewRemoteProvider(transcription.RemoteConfig{
			APIKey:       t.APIKey,
			BaseURL:      t.BaseURL,
			PollInterval: t.PollInterval,
			Timeout:      t.Timeout,
		})
	}
}

func (a *app) ingester(withTranscriber bool) (*ingest.Service, error) {
	idx, err := a.indexer()
	if err != nil {
		return nil, err
	}
	cfg := ingest.Config{
		Feed:    feed.NewReader(nil),
		Store:   a.store,
		Indexer: idx,
		Workers: a.cfg.Indexer.Workers,
	}
	if withTranscriber {
		if cfg.Transcriber, err = a.transcriber(); err != nil {
			return nil, err
		}
	}
	if a.archive != nil {
		cfg.Archive = a.archive
		if cfg.Replicator, err = replication.NewReplicator(replication.Config{Archive: a.archive, Store: a.store}); err != nil {
			return nil, err
		}
	}
	return ingest.NewService(cfg)
}
