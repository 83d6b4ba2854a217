package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/tibok/tibok/internal/plugin/security"
)

// DocumentModule implements tibok.document, read-only document metadata.
type DocumentModule struct {
	ctx *Context
}

// NewDocumentModule creates a new document metadata module.
func NewDocumentModule(ctx *Context) *DocumentModule {
	return &DocumentModule{ctx: ctx}
}

// Name returns the module name.
func (m *DocumentModule) Name() string { return "document" }

// RequiredPermission returns the permission required for this module.
func (m *DocumentModule) RequiredPermission() security.Permission {
	return security.PermissionReadDocumentMetadata
}

// Register installs tibok.document.
func (m *DocumentModule) Register(L *lua.LState, tibok *lua.LTable) error {
	mod := subTable(L, tibok, "document")
	L.SetField(mod, "filename", L.NewFunction(m.filename))
	L.SetField(mod, "path", L.NewFunction(m.path))
	L.SetField(mod, "wordCount", L.NewFunction(m.wordCount))
	L.SetField(mod, "title", L.NewFunction(m.title))
	L.SetField(mod, "isModified", L.NewFunction(m.isModified))
	return nil
}

func (m *DocumentModule) filename(L *lua.LState) int {
	if m.ctx.Document == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(m.ctx.Document.Filename()))
	return 1
}

func (m *DocumentModule) path(L *lua.LState) int {
	if m.ctx.Document == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(m.ctx.Document.Path()))
	return 1
}

func (m *DocumentModule) wordCount(L *lua.LState) int {
	if m.ctx.Document == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(m.ctx.Document.WordCount()))
	return 1
}

func (m *DocumentModule) title(L *lua.LState) int {
	if m.ctx.Document == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(m.ctx.Document.Title()))
	return 1
}

func (m *DocumentModule) isModified(L *lua.LState) int {
	if m.ctx.Document == nil {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(m.ctx.Document.IsModified()))
	return 1
}
