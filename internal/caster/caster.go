// Package caster keeps loaded shadow casters in one flat vertex list, the
// way a renderer uploads them: every line contributes its start and end
// point, and each cell of an entry covers a contiguous vertex range.
package caster

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/shadowcast/internal/logger"
	"github.com/Faultbox/shadowcast/pkg/formats"
)

// Span is a half-open vertex range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of vertices in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Entry is one registered caster.
type Entry struct {
	Path       string // empty for entries added with Register
	CellWidth  uint32
	CellHeight uint32
	Cells      []Span

	gen uint64 // Manager generation the spans belong to
}

// Cell returns the vertex range of cell i, or false if i is out of range.
func (e *Entry) Cell(i int) (Span, bool) {
	if i < 0 || i >= len(e.Cells) {
		return Span{}, false
	}
	return e.Cells[i], true
}

// Manager registers casters and owns their shared vertex list.
// Entries are never unloaded individually; Clear drops everything.
type Manager struct {
	mu       sync.RWMutex
	opts     formats.DecodeOptions
	vertices []formats.Point
	entries  []*Entry
	byPath   map[string]*Entry
	dirty    bool
	gen      uint64 // bumped by Clear

	// Stats
	hits   int
	misses int
}

// NewManager creates a manager that decodes files with the given limits.
func NewManager(opts formats.DecodeOptions) *Manager {
	return &Manager{
		opts:   opts,
		byPath: make(map[string]*Entry),
	}
}

// Load returns the entry for path, decoding the file on first use.
func (m *Manager) Load(path string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.byPath[path]; ok {
		m.hits++
		return e, nil
	}
	m.misses++

	shdw, err := formats.ParseSHDWFileWithOptions(path, m.opts)
	if err != nil {
		return nil, fmt.Errorf("loading caster %s: %w", path, err)
	}

	e := m.register(shdw)
	e.Path = path
	m.byPath[path] = e

	logger.Debug("caster loaded",
		zap.String("path", path),
		zap.Int("cells", len(e.Cells)),
		zap.Int("vertices", len(m.vertices)))
	return e, nil
}

// LoadAll loads every path and returns the entries that succeeded together
// with all failures combined.
func (m *Manager) LoadAll(paths ...string) ([]*Entry, error) {
	var (
		entries []*Entry
		errs    error
	)
	for _, path := range paths {
		e, err := m.Load(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, errs
}

// Register adds an anonymous caster. The same grid registered twice gets
// two entries.
func (m *Manager) Register(shdw *formats.SHDW) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.register(shdw)
}

func (m *Manager) register(shdw *formats.SHDW) *Entry {
	e := &Entry{
		CellWidth:  shdw.CellWidth,
		CellHeight: shdw.CellHeight,
		Cells:      make([]Span, len(shdw.Cells)),
		gen:        m.gen,
	}

	for i, cell := range shdw.Cells {
		start := len(m.vertices)
		for _, line := range cell.Lines {
			m.vertices = append(m.vertices, line.Start, line.End)
		}
		e.Cells[i] = Span{Start: start, End: len(m.vertices)}
	}

	m.entries = append(m.entries, e)
	m.dirty = true
	return e
}

// Vertices returns a copy of the shared vertex list.
func (m *Manager) Vertices() []formats.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]formats.Point(nil), m.vertices...)
}

// Lines returns the segments of cell i of e. Entries registered before the
// last Clear have no segments.
func (m *Manager) Lines(e *Entry, i int) []formats.Line {
	span, ok := e.Cell(i)
	if !ok {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if e.gen != m.gen {
		return nil
	}

	lines := make([]formats.Line, 0, span.Len()/2)
	for v := span.Start; v+1 < span.End; v += 2 {
		lines = append(lines, formats.Line{Start: m.vertices[v], End: m.vertices[v+1]})
	}
	return lines
}

// Flush calls upload with the vertex list if anything was registered since
// the last flush. It reports whether upload ran.
func (m *Manager) Flush(upload func(vertices []formats.Point) error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return false, nil
	}
	if err := upload(m.vertices); err != nil {
		return true, fmt.Errorf("uploading casters: %w", err)
	}
	m.dirty = false
	return true, nil
}

// Len returns the number of registered entries.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear drops every entry and vertex. Nothing is left to upload afterwards.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.vertices = nil
	m.entries = nil
	m.byPath = make(map[string]*Entry)
	m.dirty = false
	m.gen++
}

// Stats returns how many Load calls were served from memory and from disk.
func (m *Manager) Stats() (hits, misses int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}
