package main

import (
	"path/filepath"

	"github.com/sjarmak/acebeads/internal/config"
	"github.com/sjarmak/acebeads/internal/deltaqueue"
	"github.com/sjarmak/acebeads/internal/knowledge"
	"github.com/sjarmak/acebeads/internal/tracestore"
)

// openKnowledge builds the Knowledge Store rooted at the directory
// holding cfg's playbook, so every write is guarded against escaping
// that root (spec.md Section 4.1).
func openKnowledge(cfg *config.Config) (*knowledge.Store, error) {
	root := filepath.Dir(cfg.AgentsPath)
	archivePath := filepath.Join(root, "playbook.archive.md")
	return knowledge.NewStore(root, cfg.AgentsPath, archivePath)
}

func openQueue(cfg *config.Config) *deltaqueue.Queue {
	return deltaqueue.New(cfg.DeltaQueuePath)
}

func openTraces(cfg *config.Config) *tracestore.Store {
	return tracestore.New(cfg.TracesPath)
}
