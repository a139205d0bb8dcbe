// Package world holds the object model and the in-memory write-through
// cache, including inheritance-aware attribute resolution.
package world

import (
	"time"

	"github.com/adamdray/gaia-mud/pkg/g"
)

// RootObjectID is the only object permitted to have no parents.
const RootObjectID = "#object"

// Object is a node in the world graph. IDs are free-form strings: either a
// human-chosen #name (optionally #ns:name) or a server-assigned unique
// string.
type Object struct {
	ID         string             `json:"id" yaml:"id"`
	Name       string             `json:"name,omitempty" yaml:"name,omitempty"`
	ParentIDs  []string           `json:"parentIds,omitempty" yaml:"parents,omitempty"`
	Attributes map[string]g.Value `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	LocationID string             `json:"locationId,omitempty" yaml:"location,omitempty"`
	ContentIDs []string           `json:"contentIds,omitempty" yaml:"contents,omitempty"`
	OwnerID    string             `json:"ownerId,omitempty" yaml:"owner,omitempty"`
	Created    time.Time          `json:"created,omitempty" yaml:"created,omitempty"`
	Updated    time.Time          `json:"updated,omitempty" yaml:"updated,omitempty"`

	// Rev is the store's opaque revision for optimistic concurrency. It is
	// managed by the cache and store adapter, never by callers.
	Rev string `json:"-" yaml:"-"`
}

// Clone returns a deep copy; cache snapshots are immutable, so every
// mutation works on a clone.
func (o *Object) Clone() *Object {
	cp := *o
	cp.ParentIDs = append([]string(nil), o.ParentIDs...)
	cp.ContentIDs = append([]string(nil), o.ContentIDs...)
	cp.Attributes = make(map[string]g.Value, len(o.Attributes))
	for k, v := range o.Attributes {
		cp.Attributes[k] = v
	}
	return &cp
}

// GetOwn returns an attribute from the object's own mapping, ignoring
// inheritance.
func (o *Object) GetOwn(name string) (g.Value, bool) {
	v, ok := o.Attributes[name]
	return v, ok
}

// HasContent reports whether id is in the contents set.
func (o *Object) HasContent(id string) bool {
	for _, c := range o.ContentIDs {
		if c == id {
			return true
		}
	}
	return false
}

// AddContent inserts id into the contents set.
func (o *Object) AddContent(id string) {
	if !o.HasContent(id) {
		o.ContentIDs = append(o.ContentIDs, id)
	}
}

// RemoveContent drops id from the contents set.
func (o *Object) RemoveContent(id string) {
	for i, c := range o.ContentIDs {
		if c == id {
			o.ContentIDs = append(o.ContentIDs[:i], o.ContentIDs[i+1:]...)
			return
		}
	}
}
