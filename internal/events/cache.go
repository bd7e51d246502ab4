package events

// DocumentCacheHit is emitted when a parsed document was served from cache.
type DocumentCacheHit struct {
	Key         string
	IsPersisted bool
}

// DocumentCacheAdd is emitted when a parsed and validated document was cached.
type DocumentCacheAdd struct {
	Key string
}

// OperationCacheHit is emitted when a prepared operation was reused.
type OperationCacheHit struct {
	Key string
}

// OperationCacheAdd is emitted when a prepared operation was cached.
type OperationCacheAdd struct {
	Key string
}

// PersistedOperationSaved is emitted after a document was written to the
// persisted operation storage.
type PersistedOperationSaved struct {
	DocumentID string
	Algorithm  string
}
