package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ScopeKind names the kind of ordered list.
type ScopeKind string

// Scope kinds.
const (
	// ScopeLibrary orders every book of one owner.
	ScopeLibrary ScopeKind = "library"
	// ScopeCollection orders the books of one collection.
	ScopeCollection ScopeKind = "collection"
	// ScopeCollections orders one owner's collections.
	ScopeCollections ScopeKind = "collections"
)

// ErrInvalidScope is returned by ParseScope.
var ErrInvalidScope = errors.New("invalid scope")

// Scope identifies one orderable list. Ref is the owner ID for library and
// collection-list scopes and the collection ID for collection scopes.
type Scope struct {
	Kind ScopeKind
	Ref  string
}

// LibraryScope is the owner's library.
func LibraryScope(ownerID string) Scope { return Scope{Kind: ScopeLibrary, Ref: ownerID} }

// CollectionScope is the books of one collection.
func CollectionScope(collectionID string) Scope {
	return Scope{Kind: ScopeCollection, Ref: collectionID}
}

// CollectionsScope is the owner's list of collections.
func CollectionsScope(ownerID string) Scope { return Scope{Kind: ScopeCollections, Ref: ownerID} }

// Key is the persisted form, e.g. "library:usr_1".
func (s Scope) Key() string {
	return string(s.Kind) + ":" + s.Ref
}

func (s Scope) String() string { return s.Key() }

// ItemKind is the kind of entity a scope holds.
func (s Scope) ItemKind() string {
	if s.Kind == ScopeCollections {
		return "collection"
	}
	return "book"
}

// ParseScope reverses Key.
func ParseScope(key string) (Scope, error) {
	kind, ref, ok := strings.Cut(key, ":")
	if !ok || ref == "" {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, key)
	}
	switch k := ScopeKind(kind); k {
	case ScopeLibrary, ScopeCollection, ScopeCollections:
		return Scope{Kind: k, Ref: ref}, nil
	}
	return Scope{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, kind)
}

// OrderedItem is one row of a scope.
type OrderedItem struct {
	Scope    Scope
	OwnerID  string
	ItemID   string
	Position int64
}
