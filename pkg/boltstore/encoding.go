package boltstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adamdray/gaia-mud/pkg/g"
	"github.com/adamdray/gaia-mud/pkg/world"
)

// taggedValue is the persisted form of a g.Value. JSON alone cannot round-
// trip object references and nested lists, so values carry a type tag.
type taggedValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

func encodeValue(v g.Value) (taggedValue, error) {
	switch t := v.(type) {
	case nil:
		return taggedValue{T: "null"}, nil
	case string:
		raw, _ := json.Marshal(t)
		return taggedValue{T: "s", V: raw}, nil
	case float64:
		raw, _ := json.Marshal(t)
		return taggedValue{T: "n", V: raw}, nil
	case bool:
		raw, _ := json.Marshal(t)
		return taggedValue{T: "b", V: raw}, nil
	case g.Ref:
		raw, _ := json.Marshal(string(t))
		return taggedValue{T: "ref", V: raw}, nil
	case g.List:
		items := make([]taggedValue, len(t))
		for i, e := range t {
			enc, err := encodeValue(e)
			if err != nil {
				return taggedValue{}, err
			}
			items[i] = enc
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return taggedValue{}, err
		}
		return taggedValue{T: "l", V: raw}, nil
	case g.Map:
		items := make(map[string]taggedValue, len(t))
		for k, e := range t {
			enc, err := encodeValue(e)
			if err != nil {
				return taggedValue{}, err
			}
			items[k] = enc
		}
		raw, err := json.Marshal(items)
		if err != nil {
			return taggedValue{}, err
		}
		return taggedValue{T: "m", V: raw}, nil
	default:
		return taggedValue{}, fmt.Errorf("boltstore: unencodable value type %T", v)
	}
}

func decodeValue(tv taggedValue) (g.Value, error) {
	switch tv.T {
	case "null":
		return nil, nil
	case "s":
		var s string
		err := json.Unmarshal(tv.V, &s)
		return s, err
	case "n":
		var f float64
		err := json.Unmarshal(tv.V, &f)
		return f, err
	case "b":
		var b bool
		err := json.Unmarshal(tv.V, &b)
		return b, err
	case "ref":
		var s string
		err := json.Unmarshal(tv.V, &s)
		return g.Ref(s), err
	case "l":
		var items []taggedValue
		if err := json.Unmarshal(tv.V, &items); err != nil {
			return nil, err
		}
		out := make(g.List, len(items))
		for i, it := range items {
			v, err := decodeValue(it)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case "m":
		var items map[string]taggedValue
		if err := json.Unmarshal(tv.V, &items); err != nil {
			return nil, err
		}
		out := make(g.Map, len(items))
		for k, it := range items {
			v, err := decodeValue(it)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("boltstore: unknown value tag %q", tv.T)
	}
}

// objectDoc is the persisted document envelope for a world object.
type objectDoc struct {
	Rev        uint64                 `json:"rev"`
	ID         string                 `json:"id"`
	Name       string                 `json:"name,omitempty"`
	ParentIDs  []string               `json:"parentIds,omitempty"`
	Attributes map[string]taggedValue `json:"attributes,omitempty"`
	LocationID string                 `json:"locationId,omitempty"`
	ContentIDs []string               `json:"contentIds,omitempty"`
	OwnerID    string                 `json:"ownerId,omitempty"`
	Created    time.Time              `json:"created,omitempty"`
	Updated    time.Time              `json:"updated,omitempty"`
}

func encodeObject(obj *world.Object, rev uint64) ([]byte, error) {
	doc := objectDoc{
		Rev:        rev,
		ID:         obj.ID,
		Name:       obj.Name,
		ParentIDs:  obj.ParentIDs,
		LocationID: obj.LocationID,
		ContentIDs: obj.ContentIDs,
		OwnerID:    obj.OwnerID,
		Created:    obj.Created,
		Updated:    obj.Updated,
	}
	if len(obj.Attributes) > 0 {
		doc.Attributes = make(map[string]taggedValue, len(obj.Attributes))
		for k, v := range obj.Attributes {
			enc, err := encodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", k, err)
			}
			doc.Attributes[k] = enc
		}
	}
	return json.Marshal(doc)
}

func decodeObject(data []byte) (*world.Object, uint64, error) {
	var doc objectDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, err
	}
	obj := &world.Object{
		ID:         doc.ID,
		Name:       doc.Name,
		ParentIDs:  doc.ParentIDs,
		LocationID: doc.LocationID,
		ContentIDs: doc.ContentIDs,
		OwnerID:    doc.OwnerID,
		Created:    doc.Created,
		Updated:    doc.Updated,
		Attributes: make(map[string]g.Value, len(doc.Attributes)),
	}
	for k, tv := range doc.Attributes {
		v, err := decodeValue(tv)
		if err != nil {
			return nil, 0, fmt.Errorf("attribute %q: %w", k, err)
		}
		obj.Attributes[k] = v
	}
	return obj, doc.Rev, nil
}
