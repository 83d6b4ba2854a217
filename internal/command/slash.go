package command

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Template markers understood by slash-command templates.
const (
	CursorMarker = "{{cursor}}"
	DateMarker   = "{{date}}"
)

// SlashHandler produces the text a slash command inserts.
type SlashHandler func(ctx context.Context) (string, error)

// SlashCommand is an entry in the slash-command menu. It either carries a
// static Template or a Handler.
type SlashCommand struct {
	// Name is the trigger without the leading slash (e.g., "h1").
	Name string

	Description string
	Icon        string
	Keywords    []string
	Category    string

	// Template is inserted as-is after marker expansion.
	Template string

	// Handler computes the insertion when Template is empty.
	Handler SlashHandler

	// Owner records which source registered the command.
	Owner string
}

// Key implements Entry.
func (s *SlashCommand) Key() string { return s.Name }

// Source implements Entry.
func (s *SlashCommand) Source() string { return s.Owner }

// SearchTerms implements Searchable.
func (s *SlashCommand) SearchTerms() []string {
	terms := make([]string, 0, len(s.Keywords)+3)
	terms = append(terms, s.Name, s.Description)
	terms = append(terms, s.Keywords...)
	return append(terms, s.Category)
}

// Label implements Searchable.
func (s *SlashCommand) Label() string { return s.Name }

// Insertion is the result of running a slash command.
type Insertion struct {
	Text string

	// Cursor is the byte offset within Text where the caret belongs,
	// or -1 to leave it after the text.
	Cursor int
}

// Expand produces the command's insertion.
func (s *SlashCommand) Expand(ctx context.Context, now time.Time) (Insertion, error) {
	text := s.Template
	if s.Handler != nil && text == "" {
		var err error
		text, err = s.Handler(ctx)
		if err != nil {
			return Insertion{Cursor: -1}, fmt.Errorf("slash command /%s: %w", s.Name, err)
		}
	}
	return RenderTemplate(text, now), nil
}

// RenderTemplate replaces {{date}} with the ISO date and removes the first
// {{cursor}}, recording its offset.
func RenderTemplate(text string, now time.Time) Insertion {
	text = strings.ReplaceAll(text, DateMarker, now.Format("2006-01-02"))

	cursor := strings.Index(text, CursorMarker)
	if cursor >= 0 {
		text = text[:cursor] + text[cursor+len(CursorMarker):]
		text = strings.ReplaceAll(text, CursorMarker, "")
	}
	return Insertion{Text: text, Cursor: cursor}
}

// SlashCommands is the slash-command registry.
type SlashCommands struct {
	*Registry[*SlashCommand]
	filter *Filter
	now    func() time.Time
}

// NewSlashCommands creates a slash-command registry.
func NewSlashCommands(policy Policy) *SlashCommands {
	return &SlashCommands{
		Registry: NewRegistry[*SlashCommand](policy),
		filter:   NewFilter(),
		now:      time.Now,
	}
}

// SetClock replaces the clock used for {{date}}.
func (s *SlashCommands) SetClock(now func() time.Time) {
	s.now = now
}

// Register validates and adds a slash command. A leading "/" on the name
// is stripped.
func (s *SlashCommands) Register(cmd *SlashCommand) error {
	if cmd == nil {
		return fmt.Errorf("slash command cannot be nil")
	}
	cmd.Name = strings.TrimPrefix(cmd.Name, "/")
	if strings.ContainsAny(cmd.Name, " \t\n") {
		return fmt.Errorf("slash command %q: name cannot contain whitespace", cmd.Name)
	}
	if cmd.Template == "" && cmd.Handler == nil {
		return fmt.Errorf("slash command %q: needs a template or a handler", cmd.Name)
	}
	return s.Registry.Register(cmd)
}

// Execute expands the slash command with the given name.
func (s *SlashCommands) Execute(ctx context.Context, name string) (Insertion, error) {
	name = strings.TrimPrefix(name, "/")
	cmd, ok := s.Get(name)
	if !ok {
		return Insertion{Cursor: -1}, fmt.Errorf("unknown slash command: /%s", name)
	}
	return cmd.Expand(ctx, s.now())
}

// Search finds slash commands matching the query.
func (s *SlashCommands) Search(query string, limit int) []SearchResult[*SlashCommand] {
	return Search(s.filter, s.All(), strings.TrimPrefix(query, "/"), limit)
}
