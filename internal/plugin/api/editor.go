package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/tibok/tibok/internal/editor"
	"github.com/tibok/tibok/internal/plugin/security"
)

// Offsets crossing the Lua boundary are 0-based byte offsets.

// InsertModule implements tibok.editor.insertText and replaceSelection.
type InsertModule struct {
	ctx *Context
}

// NewInsertModule creates a new text insertion module.
func NewInsertModule(ctx *Context) *InsertModule {
	return &InsertModule{ctx: ctx}
}

// Name returns the module name.
func (m *InsertModule) Name() string { return "editor.insert" }

// RequiredPermission returns the permission required for this module.
func (m *InsertModule) RequiredPermission() security.Permission {
	return security.PermissionInsertText
}

// Register installs the insertion functions into tibok.editor.
func (m *InsertModule) Register(L *lua.LState, tibok *lua.LTable) error {
	mod := subTable(L, tibok, "editor")
	L.SetField(mod, "insertText", L.NewFunction(m.insertText))
	L.SetField(mod, "replaceSelection", L.NewFunction(m.replaceSelection))
	return nil
}

// insertText(text) -> nil
func (m *InsertModule) insertText(L *lua.LState) int {
	text := L.CheckString(1)
	requireEditor(L, m.ctx).InsertText(text)
	return 0
}

// replaceSelection(text) -> nil
func (m *InsertModule) replaceSelection(L *lua.LState) int {
	text := L.CheckString(1)
	requireEditor(L, m.ctx).ReplaceSelection(text)
	return 0
}

// SelectionModule implements the selection accessors of tibok.editor.
type SelectionModule struct {
	ctx *Context
}

// NewSelectionModule creates a new selection module.
func NewSelectionModule(ctx *Context) *SelectionModule {
	return &SelectionModule{ctx: ctx}
}

// Name returns the module name.
func (m *SelectionModule) Name() string { return "editor.selection" }

// RequiredPermission returns the permission required for this module.
func (m *SelectionModule) RequiredPermission() security.Permission {
	return security.PermissionReadSelection
}

// Register installs the selection functions into tibok.editor.
func (m *SelectionModule) Register(L *lua.LState, tibok *lua.LTable) error {
	mod := subTable(L, tibok, "editor")
	L.SetField(mod, "getSelectedText", L.NewFunction(m.getSelectedText))
	L.SetField(mod, "getSelectionRange", L.NewFunction(m.getSelectionRange))
	L.SetField(mod, "setSelectionRange", L.NewFunction(m.setSelectionRange))
	return nil
}

// getSelectedText() -> string
func (m *SelectionModule) getSelectedText(L *lua.LState) int {
	L.Push(lua.LString(requireEditor(L, m.ctx).SelectedText()))
	return 1
}

// getSelectionRange() -> start, end
func (m *SelectionModule) getSelectionRange(L *lua.LState) int {
	r := requireEditor(L, m.ctx).SelectionRange()
	L.Push(lua.LNumber(r.Start))
	L.Push(lua.LNumber(r.End))
	return 2
}

// setSelectionRange(start, end) -> nil
func (m *SelectionModule) setSelectionRange(L *lua.LState) int {
	start := L.CheckInt(1)
	end := L.CheckInt(2)
	if err := requireEditor(L, m.ctx).SetSelectionRange(editor.Range{Start: start, End: end}); err != nil {
		L.RaiseError("setSelectionRange: %v", err)
	}
	return 0
}

// ContentModule implements the document content accessors of tibok.editor.
type ContentModule struct {
	ctx *Context
}

// NewContentModule creates a new content module.
func NewContentModule(ctx *Context) *ContentModule {
	return &ContentModule{ctx: ctx}
}

// Name returns the module name.
func (m *ContentModule) Name() string { return "editor.content" }

// RequiredPermission returns the permission required for this module.
func (m *ContentModule) RequiredPermission() security.Permission {
	return security.PermissionReadCurrentDocument
}

// Register installs the content functions into tibok.editor.
func (m *ContentModule) Register(L *lua.LState, tibok *lua.LTable) error {
	mod := subTable(L, tibok, "editor")
	L.SetField(mod, "getContent", L.NewFunction(m.getContent))
	L.SetField(mod, "getCursorPosition", L.NewFunction(m.getCursorPosition))
	return nil
}

// getContent() -> string
func (m *ContentModule) getContent(L *lua.LState) int {
	L.Push(lua.LString(requireEditor(L, m.ctx).Content()))
	return 1
}

// getCursorPosition() -> number
func (m *ContentModule) getCursorPosition(L *lua.LState) int {
	L.Push(lua.LNumber(requireEditor(L, m.ctx).CursorPosition()))
	return 1
}

// requireEditor raises a Lua error when no editor is attached.
func requireEditor(L *lua.LState, ctx *Context) editor.Editor {
	if ctx.Editor == nil {
		L.RaiseError("no active editor")
	}
	return ctx.Editor
}
