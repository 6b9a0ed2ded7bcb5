package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ContentCatalog abstracts the media-server library backing the content
// pool (e.g. a Plex-style server).
type ContentCatalog interface {
	// Libraries lists the library IDs available on the server.
	Libraries(ctx context.Context) ([]string, error)

	// Items returns the playable assets of a library.
	Items(ctx context.Context, libraryID string) ([]Content, error)
}

// MetadataProvider abstracts the external metadata source (e.g. a
// TMDB-style provider) used to enrich catalog items.
type MetadataProvider interface {
	// Lookup fetches metadata for one content item. A nil result with a
	// nil error means the provider has nothing for it.
	Lookup(ctx context.Context, content Content) (*ContentMeta, error)
}

// MetadataCache stores enrichment results between runs. Implementations
// must treat entries as immutable values.
type MetadataCache interface {
	Get(ctx context.Context, key string) (*ContentMeta, error)
	Put(ctx context.Context, key string, meta *ContentMeta) error
	Delete(ctx context.Context, key string) error
}

// ChannelSink receives a finished schedule for playout (e.g. a Tunarr-style
// channel manager).
type ChannelSink interface {
	// Push replaces the channel's upcoming lineup with the given programs.
	Push(ctx context.Context, channelID string, programs []*ScheduledProgram) error
}

// Suggester is the LLM adapter used for post-hoc schedule suggestions.
// Calls carry their own timeout; the generator never blocks on it.
type Suggester interface {
	// Suggest returns a free-form improvement suggestion for a result.
	Suggest(ctx context.Context, prompt string, result *ProgrammingResult) (string, error)
}

// HistoryStore persists completed runs for later audit.
type HistoryStore interface {
	SaveResult(ctx context.Context, result *StoredResult) error
	GetResult(ctx context.Context, id string) (*StoredResult, error)
	ListResults(ctx context.Context, channelID string, limit int) ([]*StoredResult, error)
	DeleteResult(ctx context.Context, id string) error
}
