package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adamdray/gaia-mud/pkg/g"
	"github.com/adamdray/gaia-mud/pkg/validate"
	"github.com/adamdray/gaia-mud/pkg/world"
)

// objectDef is the world-definition-file schema, the same shape as the
// persisted document form.
type objectDef struct {
	ID         string         `yaml:"id" json:"id"`
	Name       string         `yaml:"name" json:"name"`
	Parents    []string       `yaml:"parents" json:"parentIds"`
	Attributes map[string]any `yaml:"attributes" json:"attributes"`
	Location   string         `yaml:"location" json:"locationId"`
	Contents   []string       `yaml:"contents" json:"contentIds"`
	Owner      string         `yaml:"owner" json:"ownerId"`
}

// LoadWorldDir walks a directory tree of world definition files: YAML and
// JSON documents (single object or array), plus .g files whose source is
// assigned to the run attribute of the object named by the file base-name.
// Existing objects are updated in place, so the loader is idempotent across
// restarts.
func (gm *Game) LoadWorldDir(dir string) error {
	var defs []objectDef
	var gFiles []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			fileDefs, err := loadDefFile(path)
			if err != nil {
				return err
			}
			defs = append(defs, fileDefs...)
		case ".g":
			gFiles = append(gFiles, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("worldload: %w", err)
	}

	loaded := 0
	for _, def := range defs {
		if def.ID == "" {
			return fmt.Errorf("worldload: definition without id (name %q)", def.Name)
		}
		if err := gm.installDef(def); err != nil {
			return fmt.Errorf("worldload: %s: %w", def.ID, err)
		}
		loaded++
	}

	for _, path := range gFiles {
		if err := gm.installGFile(path); err != nil {
			return fmt.Errorf("worldload: %s: %w", path, err)
		}
		loaded++
	}

	log.Printf("worldload: loaded %d definitions from %s", loaded, dir)
	return nil
}

// loadDefFile parses one YAML or JSON definition file into objectDefs.
func loadDefFile(path string) ([]objectDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	// Each document is a single object or an array of objects.
	var many []objectDef
	if isJSON {
		if err := json.Unmarshal(data, &many); err == nil {
			return many, nil
		}
		var one objectDef
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return []objectDef{one}, nil
	}

	if err := yaml.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one objectDef
	if err := yaml.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []objectDef{one}, nil
}

// installDef creates or updates one object from its definition.
func (gm *Game) installDef(def objectDef) error {
	attrs := make(map[string]g.Value, len(def.Attributes))
	for k, v := range def.Attributes {
		attrs[k] = toGValue(v)
	}

	if gm.Cache.Contains(def.ID) {
		return gm.Cache.Mutate(def.ID, func(o *world.Object) error {
			if def.Name != "" {
				o.Name = def.Name
			}
			if len(def.Parents) > 0 {
				o.ParentIDs = def.Parents
			}
			if def.Location != "" {
				o.LocationID = def.Location
			}
			if len(def.Contents) > 0 {
				o.ContentIDs = def.Contents
			}
			if def.Owner != "" {
				o.OwnerID = def.Owner
			}
			for k, v := range attrs {
				o.Attributes[k] = v
			}
			return nil
		})
	}

	parents := def.Parents
	if len(parents) == 0 && def.ID != world.RootObjectID {
		parents = []string{world.RootObjectID}
	}
	return gm.Cache.Create(&world.Object{
		ID:         def.ID,
		Name:       def.Name,
		ParentIDs:  parents,
		Attributes: attrs,
		LocationID: def.Location,
		ContentIDs: def.Contents,
		OwnerID:    def.Owner,
	})
}

// installGFile assigns a .g file's source to the run attribute of the
// object whose ID equals the file base-name.
func (gm *Game) installGFile(path string) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := base
	if !strings.HasPrefix(id, "#") {
		id = "#" + id
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	src := string(data)

	findings := validate.CheckSource(src)
	if validate.HasErrors(findings) {
		return fmt.Errorf("invalid G source: %s", validate.Summary(findings))
	}

	if !gm.Cache.Contains(id) {
		if err := gm.Cache.Create(&world.Object{
			ID:        id,
			Name:      strings.TrimPrefix(id, "#"),
			ParentIDs: []string{world.RootObjectID},
		}); err != nil {
			return err
		}
	}
	return gm.Cache.SetAttribute(id, "run", src)
}

// toGValue converts decoded YAML/JSON values into G values: numbers become
// float64, "#"-prefixed strings under a ref key stay strings (references in
// definitions use the ref form inside attribute values).
func toGValue(v any) g.Value {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	case string:
		return t
	case []any:
		out := make(g.List, len(t))
		for i, e := range t {
			out[i] = toGValue(e)
		}
		return out
	case map[string]any:
		out := make(g.Map, len(t))
		for k, e := range t {
			out[k] = toGValue(e)
		}
		return out
	case map[any]any:
		out := make(g.Map, len(t))
		for k, e := range t {
			out[fmt.Sprintf("%v", k)] = toGValue(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", t)
	}
}
