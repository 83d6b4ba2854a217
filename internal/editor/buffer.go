package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// Buffer is an in-memory document with a cursor and a selection.
type Buffer struct {
	mu        sync.RWMutex
	content   string
	selection Range
	path      string
	modified  bool
}

// NewBuffer creates a buffer holding content with the cursor at the end.
func NewBuffer(content string) *Buffer {
	end := len(content)
	return &Buffer{content: content, selection: Range{Start: end, End: end}}
}

// Open reads a file into a new buffer.
func Open(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	b := NewBuffer(string(data))
	b.path = path
	return b, nil
}

// Save writes the buffer to its path and clears the modified flag.
func (b *Buffer) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.path == "" {
		return fmt.Errorf("save document: no path")
	}
	if err := os.WriteFile(b.path, []byte(b.content), 0644); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	b.modified = false
	return nil
}

// SetPath sets the document path.
func (b *Buffer) SetPath(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.path = path
}

// InsertText implements Editor.
func (b *Buffer) InsertText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := b.selection.End
	b.spliceLocked(Range{Start: at, End: at}, text)
}

// ReplaceSelection implements Editor.
func (b *Buffer) ReplaceSelection(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spliceLocked(b.selection, text)
}

// spliceLocked replaces r with text and collapses the selection after it.
func (b *Buffer) spliceLocked(r Range, text string) {
	b.content = b.content[:r.Start] + text + b.content[r.End:]
	end := r.Start + len(text)
	b.selection = Range{Start: end, End: end}
	b.modified = true
}

// SelectedText implements Editor.
func (b *Buffer) SelectedText() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content[b.selection.Start:b.selection.End]
}

// Content implements Editor.
func (b *Buffer) Content() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content
}

// CursorPosition implements Editor.
func (b *Buffer) CursorPosition() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selection.End
}

// SetCursorPosition collapses the selection at offset.
func (b *Buffer) SetCursorPosition(offset int) error {
	return b.SetSelectionRange(Range{Start: offset, End: offset})
}

// SelectionRange implements Editor.
func (b *Buffer) SelectionRange() Range {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selection
}

// SetSelectionRange implements Editor.
func (b *Buffer) SetSelectionRange(r Range) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.Start < 0 || r.End < r.Start || r.End > len(b.content) {
		return fmt.Errorf("%w: [%d, %d) in %d bytes", ErrInvalidRange, r.Start, r.End, len(b.content))
	}
	b.selection = r
	return nil
}

// Filename implements Document.
func (b *Buffer) Filename() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.path == "" {
		return "Untitled"
	}
	return filepath.Base(b.path)
}

// Path implements Document.
func (b *Buffer) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

// WordCount implements Document.
func (b *Buffer) WordCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(strings.FieldsFunc(b.content, unicode.IsSpace))
}

// Title implements Document. It is the first ATX heading, or the filename
// without its extension.
func (b *Buffer) Title() string {
	b.mu.RLock()
	content := b.content
	b.mu.RUnlock()

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if title != "" {
				return title
			}
		}
	}
	name := b.Filename()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// IsModified implements Document.
func (b *Buffer) IsModified() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.modified
}

var (
	_ Editor   = (*Buffer)(nil)
	_ Document = (*Buffer)(nil)
)
