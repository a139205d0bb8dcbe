package world

import "errors"

// Store adapter errors.
var (
	// ErrNotFound reports a missing document.
	ErrNotFound = errors.New("world: object not found")
	// ErrConflict reports an optimistic-revision collision.
	ErrConflict = errors.New("world: revision conflict")
	// ErrExists reports an ID collision on creation.
	ErrExists = errors.New("world: object already exists")
)

// Store is the document-store contract the cache writes through. Revisions
// are opaque strings supplied by the store; an empty prior revision means
// "create, fail on collision".
type Store interface {
	// Fetch loads a document by object ID.
	Fetch(id string) (*Object, error)
	// Store writes a document, checking the prior revision, and returns the
	// new revision.
	Store(obj *Object, priorRev string) (string, error)
	// DeleteByID removes a document, checking the prior revision.
	DeleteByID(id, priorRev string) error
	// ListByIndex returns object IDs matching a named secondary index key.
	ListByIndex(name, key string) ([]string, error)
}
