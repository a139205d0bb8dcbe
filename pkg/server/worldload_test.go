package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adamdray/gaia-mud/pkg/g"
)

func TestLoadWorldDir(t *testing.T) {
	gm := newTestGame(t)
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "rooms.yaml"), `
- id: "#plaza"
  name: Plaza
  parents: ["#room"]
  attributes:
    description: "A wide plaza."
    capacity: 20
- id: "#fountain"
  name: fountain
  parents: ["#object"]
  location: "#plaza"
`)
	writeFile(t, filepath.Join(dir, "things.json"),
		`{"id": "#bench", "name": "bench", "parentIds": ["#object"], "locationId": "#plaza"}`)
	writeFile(t, filepath.Join(dir, "#greeter.g"), `[send @actor "welcome"]`)

	if err := gm.LoadWorldDir(dir); err != nil {
		t.Fatal(err)
	}

	plaza, err := gm.Cache.Get("#plaza")
	if err != nil {
		t.Fatal(err)
	}
	if plaza.Name != "Plaza" {
		t.Errorf("name = %q", plaza.Name)
	}
	if v, _ := plaza.GetOwn("description"); v != "A wide plaza." {
		t.Errorf("description = %v", v)
	}
	if v, _ := plaza.GetOwn("capacity"); v != float64(20) {
		t.Errorf("capacity = %v (want float64)", v)
	}

	if !gm.Cache.Contains("#bench") {
		t.Error("JSON definition not loaded")
	}

	// .g file: source assigned to run on the object named by the base name.
	v, ok, _ := gm.Cache.GetAttribute("#greeter", "run")
	if !ok || v != `[send @actor "welcome"]` {
		t.Errorf("run = %v %v", v, ok)
	}
}

func TestLoadWorldDirRejectsBrokenG(t *testing.T) {
	gm := newTestGame(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.g"), `[send @actor "oops`)

	if err := gm.LoadWorldDir(dir); err == nil {
		t.Error("broken .g file accepted")
	}
}

func TestLoadWorldDirUpdatesExisting(t *testing.T) {
	gm := newTestGame(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cfg.yaml"), `
id: "#config"
attributes:
  motd: "hello"
`)
	if err := gm.LoadWorldDir(dir); err != nil {
		t.Fatal(err)
	}
	v, ok, _ := gm.Cache.GetAttribute(ConfigObjectID, "motd")
	if !ok || v != "hello" {
		t.Errorf("motd = %v %v", v, ok)
	}
	// Existing attributes survive the merge.
	if v, ok, _ := gm.Cache.GetAttribute(ConfigObjectID, "world_name"); !ok || g.ToString(v) == "" {
		t.Error("merge clobbered existing attributes")
	}
}

func TestGameConfYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gaia.yaml")
	if err := os.WriteFile(path, []byte("world_name: Testia\ntelnet_port: 9999\n"), 0644); err != nil {
		t.Fatal(err)
	}
	gc, err := LoadGameConf(path)
	if err != nil {
		t.Fatal(err)
	}
	if gc.WorldName != "Testia" || gc.TelnetPort != 9999 {
		t.Errorf("conf = %+v", gc)
	}
	// Unset fields keep defaults.
	if gc.WebPort != 4000 || gc.DepthLimit != 128 {
		t.Errorf("defaults not filled: %+v", gc)
	}
}
