// Package file provides a JSON-file persistence implementation, suited to
// local development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	flowsDir      = "flows"
	executionsDir = "executions"
	logDir        = "execution_log"
	schedulesDir  = "order_schedules"
)

// Persistence stores every entity as one JSON document per file under a root
// directory. A single lock serializes writers; the atomic claim operations
// rely on it, which is fine for a single-process deployment.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: root}
}

// HealthCheck verifies the root directory is writable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(p.root, 0750)
	if err != nil {
		return fmt.Errorf("persistence root not writable: %w", err)
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// validateID rejects identifiers that could escape the storage directory.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

func (p *Persistence) writeDocument(dir, id string, value any) error {
	if err := validateID(id); err != nil {
		return err
	}

	fullDir := filepath.Join(p.root, dir)

	err := os.MkdirAll(fullDir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	err = os.WriteFile(filepath.Join(fullDir, id+".json"), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return nil
}

func (p *Persistence) readDocument(dir, id string, value any) error {
	if err := validateID(id); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(p.root, dir, id+".json")) // #nosec G304 -- id is validated
	if err != nil {
		return err
	}

	return json.Unmarshal(data, value)
}

func (p *Persistence) deleteDocument(dir, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	return os.Remove(filepath.Join(p.root, dir, id+".json"))
}

// listIDs returns the document ids present in a directory.
func (p *Persistence) listIDs(dir string) ([]string, error) {
	root := os.DirFS(filepath.Join(p.root, dir))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
