package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/kitab/internal/config"
	"github.com/jackzampolin/kitab/internal/defra"
	"github.com/jackzampolin/kitab/internal/home"
)

func TestDefraContainer_PerHome(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()

	names := map[string]string{}
	for _, dir := range []string{"alice", "bob"} {
		h, err := home.New(filepath.Join(root, dir, ".kitab"))
		if err != nil {
			t.Fatal(err)
		}
		node, err := defraContainer(h, cfg, nil)
		if err != nil {
			t.Fatalf("defraContainer() error = %v", err)
		}
		node.Close()

		if want := defra.ContainerNameFor(h.Path()); node.Name() != want {
			t.Errorf("Name() = %q, want %q", node.Name(), want)
		}
		if node.URL() != "http://localhost:"+cfg.Defra.Port {
			t.Errorf("URL() = %q, want configured port %s", node.URL(), cfg.Defra.Port)
		}
		if _, err := os.Stat(h.DefraDataPath()); err != nil {
			t.Errorf("data directory not created: %v", err)
		}
		names[node.Name()] = dir
	}
	if len(names) != 2 {
		t.Errorf("homes share a container: %v", names)
	}
}

func TestDefraContainer_ExplicitName(t *testing.T) {
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Defra.ContainerName = "shared-defra"
	cfg.Defra.Port = "19181"

	node, err := defraContainer(h, cfg, nil)
	if err != nil {
		t.Fatalf("defraContainer() error = %v", err)
	}
	defer node.Close()
	if node.Name() != "shared-defra" {
		t.Errorf("Name() = %q, want shared-defra", node.Name())
	}
	if node.URL() != "http://localhost:19181" {
		t.Errorf("URL() = %q", node.URL())
	}
}
