package command

import (
	"context"
	"fmt"
	"sort"
)

// Handler executes a palette command.
type Handler func(ctx context.Context) error

// Command is an entry in the command palette.
type Command struct {
	// ID is the unique command identifier (e.g., "wordcount.show").
	ID string

	// Title is the display name shown in the palette.
	Title string

	// Description provides additional context about the command.
	Description string

	// Category groups related commands (e.g., "Format", "Insert").
	Category string

	// Handler executes the command.
	Handler Handler

	// Owner records which source registered the command.
	// e.g., "core", "plugin:com.example.wordcount"
	Owner string
}

// Key implements Entry.
func (c *Command) Key() string { return c.ID }

// Source implements Entry.
func (c *Command) Source() string { return c.Owner }

// SearchTerms implements Searchable. Earlier terms weigh more.
func (c *Command) SearchTerms() []string {
	return []string{c.Title, c.ID, c.Description, c.Category}
}

// Label implements Searchable.
func (c *Command) Label() string { return c.Title }

// Execute runs the command handler.
func (c *Command) Execute(ctx context.Context) error {
	if c.Handler == nil {
		return fmt.Errorf("command %q has no handler", c.ID)
	}
	return c.Handler(ctx)
}

// Commands is the command palette registry.
type Commands struct {
	*Registry[*Command]
	history *History
	filter  *Filter
}

// NewCommands creates a command palette registry.
func NewCommands(policy Policy) *Commands {
	return &Commands{
		Registry: NewRegistry[*Command](policy),
		history:  NewHistory(100),
		filter:   NewFilter(),
	}
}

// Register validates and adds a command.
func (c *Commands) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}
	if cmd.Title == "" {
		return fmt.Errorf("command %q: title cannot be empty", cmd.ID)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q: handler cannot be nil", cmd.ID)
	}
	return c.Registry.Register(cmd)
}

// Execute runs a command by ID. History is only updated on success.
func (c *Commands) Execute(ctx context.Context, id string) error {
	cmd, ok := c.Get(id)
	if !ok {
		return fmt.Errorf("unknown command: %s", id)
	}

	err := cmd.Execute(ctx)
	if err == nil {
		c.history.Add(id)
	}
	return err
}

// Search finds commands matching the query, recently used commands first.
func (c *Commands) Search(query string, limit int) []SearchResult[*Command] {
	all := c.All()
	if query == "" {
		results := make([]SearchResult[*Command], 0, len(all))
		for _, cmd := range all {
			score := 0
			if pos := c.history.Position(cmd.ID); pos >= 0 {
				score = 1000 - pos
			}
			results = append(results, SearchResult[*Command]{Item: cmd, Score: score})
		}
		sortResults(results)
		return truncate(results, limit)
	}

	results := Search(c.filter, all, query, 0)
	for i := range results {
		if pos := c.history.Position(results[i].Item.ID); pos >= 0 {
			results[i].Score += 100 - pos
		}
	}
	sortResults(results)
	return truncate(results, limit)
}

// History returns the execution history.
func (c *Commands) History() *History {
	return c.history
}

// Categories returns all unique command categories.
func (c *Commands) Categories() []string {
	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, cmd := range c.All() {
		if cmd.Category != "" && !seen[cmd.Category] {
			seen[cmd.Category] = true
			result = append(result, cmd.Category)
		}
	}
	sort.Strings(result)
	return result
}
