package loader

import (
	"TraceCorrelator/internal/model"
	"TraceCorrelator/pkg/trace"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
)

var (
	// ErrTraceNotFound means the trace file of a node does not exist.
	ErrTraceNotFound = errors.New("trace not found")
	// ErrTraceUnreadable means the trace file exists but could not be read.
	ErrTraceUnreadable = errors.New("trace unreadable")
)

// TraceError identifies the node and file a load failure belongs to.
// errors.Is matches both the kind (ErrTraceNotFound, ErrTraceUnreadable) and the cause.
type TraceError struct {
	Node int
	Path string
	Kind error
	Err  error
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("node %d (%s): %v: %v", e.Node, e.Path, e.Kind, e.Err)
}

func (e *TraceError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Trace is the parsed content of one node's trace. Events must not be modified.
type Trace struct {
	Node   int
	Path   string
	Events []model.TraceEvent
	Stats  trace.Stats
}

// Loader maps node indices to trace files and parses them.
type Loader struct {
	dir     string
	pattern string
}

// New creates a loader for traces named after pattern (e.g. "%d.txt") inside dir.
func New(dir, pattern string) *Loader {
	return &Loader{dir: dir, pattern: pattern}
}

// Path returns the trace file of a node.
func (l *Loader) Path(node int) string {
	return filepath.Join(l.dir, fmt.Sprintf(l.pattern, node))
}

// Load reads and parses the whole trace of a node.
func (l *Loader) Load(node int) (*Trace, error) {
	path := l.Path(node)

	reader, err := trace.NewReader(path)
	if err != nil {
		kind := ErrTraceUnreadable
		if errors.Is(err, fs.ErrNotExist) {
			kind = ErrTraceNotFound
		}
		return nil, &TraceError{Node: node, Path: path, Kind: kind, Err: err}
	}
	defer reader.Close()

	events, stats, err := reader.ReadEvents()
	if err != nil {
		return nil, &TraceError{Node: node, Path: path, Kind: ErrTraceUnreadable, Err: err}
	}

	return &Trace{Node: node, Path: path, Events: events, Stats: stats}, nil
}

type cacheEntry struct {
	once  sync.Once
	trace *Trace
	err   error
}

// Cache parses every node's trace at most once. It is safe for concurrent use;
// concurrent callers asking for the same node wait for a single load.
type Cache struct {
	loader *Loader

	mu      sync.Mutex
	entries map[int]*cacheEntry
}

// NewCache creates an empty cache in front of a loader.
func NewCache(l *Loader) *Cache {
	return &Cache{loader: l, entries: make(map[int]*cacheEntry)}
}

// Get returns the parsed trace of a node, loading it on first use.
// Failed loads are cached too, so every flow touching a broken node sees the same error.
func (c *Cache) Get(node int) (*Trace, error) {
	c.mu.Lock()
	entry, ok := c.entries[node]
	if !ok {
		entry = &cacheEntry{}
		c.entries[node] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.trace, entry.err = c.loader.Load(node)
	})
	return entry.trace, entry.err
}

// Loaded returns the traces loaded successfully so far, in no particular order.
func (c *Cache) Loaded() []*Trace {
	c.mu.Lock()
	defer c.mu.Unlock()

	traces := make([]*Trace, 0, len(c.entries))
	for _, entry := range c.entries {
		if entry.trace != nil {
			traces = append(traces, entry.trace)
		}
	}
	return traces
}
