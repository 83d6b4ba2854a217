// Package editor defines the editor and document services plugins talk to,
// plus an in-memory Buffer implementing both.
package editor

import "errors"

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes in the range.
func (r Range) Len() int { return r.End - r.Start }

// Empty returns true if the range selects nothing.
func (r Range) Empty() bool { return r.Start == r.End }

// ErrInvalidRange is returned for ranges outside the document.
var ErrInvalidRange = errors.New("editor: invalid range")

// Editor mutates and reads the active document's text.
// All offsets are byte offsets into the content.
type Editor interface {
	// InsertText inserts text at the cursor and moves the cursor after it.
	InsertText(text string)

	// ReplaceSelection replaces the selected text, or inserts at the cursor
	// when the selection is empty.
	ReplaceSelection(text string)

	// SelectedText returns the selected text.
	SelectedText() string

	// Content returns the full document text.
	Content() string

	// CursorPosition returns the cursor offset.
	CursorPosition() int

	// SelectionRange returns the selection.
	SelectionRange() Range

	// SetSelectionRange selects r and moves the cursor to r.End.
	SetSelectionRange(r Range) error
}

// Document exposes read-only metadata about the active document.
type Document interface {
	Filename() string
	Path() string
	WordCount() int
	Title() string
	IsModified() bool
}
