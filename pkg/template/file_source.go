package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrMessageNotFound indicates no template exists with the given id.
var ErrMessageNotFound = errors.New("message template not found")

// FileSource loads message templates from JSON documents in a directory,
// cached after first read. Template authoring is infrequent; restart to pick
// up edits.
type FileSource struct {
	root string

	mu    sync.Mutex
	cache map[string]*Message
}

// NewFileSource creates a template source rooted at the given directory.
func NewFileSource(root string) *FileSource {
	return &FileSource{root: root, cache: make(map[string]*Message)}
}

// MessageByID loads one template document.
func (s *FileSource) MessageByID(id string) (*Message, error) {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: invalid id %q", ErrMessageNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.cache[id]; ok {
		return msg, nil
	}

	data, err := os.ReadFile(filepath.Join(s.root, id+".json")) // #nosec G304 -- id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
		}

		return nil, fmt.Errorf("failed to read template %s: %w", id, err)
	}

	var msg Message

	err = json.Unmarshal(data, &msg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", id, err)
	}

	if msg.ID == "" {
		msg.ID = id
	}

	s.cache[id] = &msg

	return &msg, nil
}
