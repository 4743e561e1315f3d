package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/logging"
	"github.com/satindergrewal/moodscore/internal/track"
)

// Bank loads segments from a directory and caches the decoded clips. Segment
// IDs are slash-separated paths relative to the root.
type Bank struct {
	root   string
	logger *log.Logger

	mu    sync.RWMutex
	clips map[track.SegmentID]*Clip
}

// NewBank creates a bank rooted at root. An empty root means the bank only
// serves clips added with Add.
func NewBank(root string, logger *log.Logger) *Bank {
	if logger == nil {
		logger = logging.Component(nil, "audio")
	}
	return &Bank{
		root:   root,
		logger: logger,
		clips:  make(map[track.SegmentID]*Clip),
	}
}

// Add registers an already decoded clip under id.
func (b *Bank) Add(id track.SegmentID, c *Clip) {
	b.mu.Lock()
	b.clips[id] = c
	b.mu.Unlock()
}

// Len returns the number of cached clips.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clips)
}

// Clip returns the decoded clip for id, decoding it on first use.
func (b *Bank) Clip(id track.SegmentID) (*Clip, error) {
	b.mu.RLock()
	c, ok := b.clips[id]
	b.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := b.load(id)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if cached, ok := b.clips[id]; ok {
		c = cached
	} else {
		b.clips[id] = c
	}
	b.mu.Unlock()
	return c, nil
}

// Preload decodes every id and returns the joined errors of those that failed.
func (b *Bank) Preload(ids ...track.SegmentID) error {
	var errs []error
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := b.Clip(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bank) load(id track.SegmentID) (*Clip, error) {
	name := string(id)
	if b.root == "" || id == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return nil, fmt.Errorf("%q: %w", name, ErrSegmentNotFound)
	}
	if !Supported(name) {
		return nil, fmt.Errorf("%q: %w", name, ErrUnsupportedFormat)
	}

	path := filepath.Join(b.root, filepath.FromSlash(name))
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", name, ErrSegmentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	c, err := Decode(name, f)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("segment decoded", "segment", name, "duration", c.Duration())
	return c, nil
}
