package native

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tibok/tibok/internal/command"
)

type fakeOpener struct {
	syms   map[string]any
	err    error
	opened []string
}

func (f *fakeOpener) Open(path string) (Symbols, error) {
	f.opened = append(f.opened, path)
	if f.err != nil {
		return nil, f.err
	}
	return fakeSymbols(f.syms), nil
}

type fakeSymbols map[string]any

func (s fakeSymbols) Lookup(name string) (any, error) {
	v, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found", name)
	}
	return v, nil
}

type samplePlugin struct {
	registered  int
	deactivated int
	failDeact   bool
}

func (p *samplePlugin) Register(ctx *Context) error {
	p.registered++
	return ctx.Registrar.RegisterSlash(&command.SlashCommand{Name: "sample", Template: "sample"})
}

func (p *samplePlugin) Deactivate() error {
	p.deactivated++
	if p.failDeact {
		return errors.New("deactivate failed")
	}
	return nil
}

func elfBinary(t *testing.T, machine elf.Machine) []byte {
	t.Helper()
	hdr := elf.Header64{
		Type:    uint16(elf.ET_DYN),
		Machine: uint16(machine),
		Version: uint32(elf.EV_CURRENT),
		Ehsize:  64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	return buf.Bytes()
}

// makeFramework creates <dir>/<name>.framework/<name> holding bin.
func makeFramework(t *testing.T, dir, name string, bin []byte) string {
	t.Helper()
	framework := filepath.Join(dir, name+FrameworkExt)
	require.NoError(t, os.MkdirAll(framework, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(framework, name), bin, 0644))
	return framework
}

type fixture struct {
	root   string
	opener *fakeOpener
	plugin *samplePlugin
	loader *Loader
	slash  *command.SlashCommands
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		root:   t.TempDir(),
		plugin: &samplePlugin{},
		slash:  command.NewSlashCommands(command.PolicyLastWins),
	}
	var factory Factory = func() Plugin { return f.plugin }
	f.opener = &fakeOpener{syms: map[string]any{"NewPlugin": &factory}}

	opts = append([]Option{WithOpener(f.opener), WithArchitecture("amd64")}, opts...)
	loader, err := NewLoader(f.root, opts...)
	require.NoError(t, err)
	f.loader = loader
	return f
}

func (f *fixture) context(id string) *Context {
	return &Context{
		PluginID:  id,
		Registrar: command.NewRegistrar(command.PluginSource(id), nil, f.slash),
	}
}

func loadError(t *testing.T, err error) *LoadError {
	t.Helper()
	var le *LoadError
	require.True(t, errors.As(err, &le), "want *LoadError, got %v", err)
	return le
}

func TestLoadSuccess(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	inst, err := f.loader.Load(fw, "NewPlugin", f.context("com.test.sample"))
	require.NoError(t, err)
	assert.Equal(t, "com.test.sample", inst.PluginID)
	assert.Equal(t, 1, f.plugin.registered)
	assert.True(t, f.slash.Has("sample"))
	assert.True(t, f.loader.IsLoaded(fw))
	assert.Equal(t, []string{filepath.Join(f.root, "Sample.framework")}, f.loader.Loaded())
}

func TestLoadIdempotent(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	first, err := f.loader.Load(fw, "NewPlugin", f.context("com.test.sample"))
	require.NoError(t, err)
	second, err := f.loader.Load(fw, "NewPlugin", f.context("com.test.sample"))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.plugin.registered)
	assert.Len(t, f.opener.opened, 1)
}

func TestLoadFactoryFunc(t *testing.T) {
	f := newFixture(t)
	p := &samplePlugin{}
	f.opener.syms["Plain"] = func() Plugin { return p }
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "Plain", f.context("com.test.sample"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.registered)
}

func TestLoadOutsideRoot(t *testing.T) {
	f := newFixture(t)
	outside := t.TempDir()
	fw := makeFramework(t, outside, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "NewPlugin", f.context("com.test.sample"))
	assert.Equal(t, InvalidFrameworkLocation, loadError(t, err).Kind)
	assert.ErrorIs(t, err, ErrInvalidFrameworkLocation)
	assert.Empty(t, f.opener.opened)

	_, err = f.loader.Load(filepath.Join(f.root, "..", filepath.Base(outside), "Sample.framework"), "NewPlugin", f.context("x"))
	assert.ErrorIs(t, err, ErrInvalidFrameworkLocation)

	_, err = f.loader.Load(f.root, "NewPlugin", f.context("x"))
	assert.ErrorIs(t, err, ErrInvalidFrameworkLocation)
}

func TestLoadSymlinkEscape(t *testing.T) {
	f := newFixture(t)
	outside := makeFramework(t, t.TempDir(), "Sample", elfBinary(t, elf.EM_X86_64))
	link := filepath.Join(f.root, "Sample.framework")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := f.loader.Load(link, "NewPlugin", f.context("com.test.sample"))
	assert.ErrorIs(t, err, ErrInvalidFrameworkLocation)
	assert.Empty(t, f.opener.opened)
}

func TestLoadNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.loader.Load(filepath.Join(f.root, "Missing.framework"), "NewPlugin", f.context("x"))
	assert.ErrorIs(t, err, ErrFrameworkNotFound)

	// Directory present, binary missing.
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "Empty.framework"), 0755))
	_, err = f.loader.Load(filepath.Join(f.root, "Empty.framework"), "NewPlugin", f.context("x"))
	assert.ErrorIs(t, err, ErrFrameworkNotFound)
}

func TestLoadTooLarge(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Big", nil)

	payload, err := os.Create(filepath.Join(fw, "payload.bin"))
	require.NoError(t, err)
	require.NoError(t, payload.Truncate(101<<20))
	require.NoError(t, payload.Close())

	_, err = f.loader.Load(fw, "NewPlugin", f.context("com.test.big"))
	le := loadError(t, err)
	assert.Equal(t, FrameworkTooLarge, le.Kind)
	assert.Equal(t, int64(101<<20), le.Actual)
	assert.Equal(t, int64(100<<20), le.Limit)
	assert.Contains(t, le.Error(), "(101MB, limit 100MB)")
	assert.Empty(t, f.opener.opened, "no instantiation attempt")
	assert.Zero(t, f.plugin.registered)
}

func TestLoadTooLargeThroughSymlink(t *testing.T) {
	f := newFixture(t)
	fw := filepath.Join(f.root, "Big"+FrameworkExt)
	require.NoError(t, os.MkdirAll(fw, 0755))

	// The real binary sits elsewhere in the root, padded past the ceiling.
	target := filepath.Join(f.root, "big.bin")
	require.NoError(t, os.WriteFile(target, elfBinary(t, elf.EM_X86_64), 0644))
	require.NoError(t, os.Truncate(target, 101<<20))
	if err := os.Symlink(target, filepath.Join(fw, "Big")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := f.loader.Load(fw, "NewPlugin", f.context("com.test.big"))
	le := loadError(t, err)
	assert.Equal(t, FrameworkTooLarge, le.Kind)
	assert.Equal(t, int64(101<<20), le.Actual)
	assert.Empty(t, f.opener.opened)
}

func TestLoadSizeCountsSymlinkedFramework(t *testing.T) {
	f := newFixture(t)
	stored := makeFramework(t, filepath.Join(f.root, "store"), "Big", elfBinary(t, elf.EM_X86_64))
	require.NoError(t, os.Truncate(filepath.Join(stored, "Big"), 101<<20))
	link := filepath.Join(f.root, "Big"+FrameworkExt)
	if err := os.Symlink(stored, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := f.loader.Load(link, "NewPlugin", f.context("com.test.big"))
	assert.ErrorIs(t, err, ErrFrameworkTooLarge)
	assert.Empty(t, f.opener.opened)
}

func TestLoadRejectsDirectoryLink(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))
	other := filepath.Join(f.root, "assets")
	require.NoError(t, os.MkdirAll(other, 0755))
	if err := os.Symlink(other, filepath.Join(fw, "Resources")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := f.loader.Load(fw, "NewPlugin", f.context("com.test.sample"))
	assert.ErrorIs(t, err, ErrInvalidFrameworkLocation)
	assert.Empty(t, f.opener.opened)
}

func TestLoadCustomMaxSize(t *testing.T) {
	f := newFixture(t, WithMaxSize(32))
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "NewPlugin", f.context("x"))
	assert.ErrorIs(t, err, ErrFrameworkTooLarge)
}

func TestLoadArchitectureMismatch(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_AARCH64))

	_, err := f.loader.Load(fw, "NewPlugin", f.context("x"))
	le := loadError(t, err)
	assert.Equal(t, ArchitectureMismatch, le.Kind)
	assert.Equal(t, "amd64", le.Want)
	assert.Equal(t, "arm64", le.Got)
	assert.Empty(t, f.opener.opened)
}

func TestLoadUnknownFormat(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Sample", []byte("#!/bin/sh\necho hi\n"))

	_, err := f.loader.Load(fw, "NewPlugin", f.context("x"))
	le := loadError(t, err)
	assert.Equal(t, ArchitectureMismatch, le.Kind)
	assert.Equal(t, "unknown", le.Got)
}

func TestLoadOpenFailed(t *testing.T) {
	f := newFixture(t)
	f.opener.err = errors.New("dlopen failed")
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "NewPlugin", f.context("x"))
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestLoadClassNotFound(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "Missing", f.context("x"))
	le := loadError(t, err)
	assert.Equal(t, ClassNotFound, le.Kind)
	assert.Equal(t, "Missing", le.Entry)
}

func TestLoadInvalidPluginType(t *testing.T) {
	f := newFixture(t)
	f.opener.syms["Wrong"] = func() string { return "nope" }
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "Wrong", f.context("x"))
	assert.ErrorIs(t, err, ErrInvalidPluginType)
	assert.False(t, f.loader.IsLoaded(fw))
}

func TestLoadPanickingFactory(t *testing.T) {
	f := newFixture(t)
	f.opener.syms["Panics"] = func() Plugin { panic("boom") }
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "Panics", f.context("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, f.loader.IsLoaded(fw))
}

func TestUnload(t *testing.T) {
	f := newFixture(t)
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "NewPlugin", f.context("com.test.sample"))
	require.NoError(t, err)

	require.NoError(t, f.loader.Unload(fw))
	assert.Equal(t, 1, f.plugin.deactivated)
	assert.False(t, f.loader.IsLoaded(fw))
	assert.Empty(t, f.loader.Loaded())

	// Unloading again is a no-op.
	require.NoError(t, f.loader.Unload(fw))
	assert.Equal(t, 1, f.plugin.deactivated)
	require.NoError(t, f.loader.Unload(filepath.Join(f.root, "Never.framework")))
}

func TestUnloadForgetsFailedDeactivate(t *testing.T) {
	f := newFixture(t)
	f.plugin.failDeact = true
	fw := makeFramework(t, f.root, "Sample", elfBinary(t, elf.EM_X86_64))

	_, err := f.loader.Load(fw, "NewPlugin", f.context("x"))
	require.NoError(t, err)

	assert.Error(t, f.loader.Unload(fw))
	assert.False(t, f.loader.IsLoaded(fw))
}

func TestArchitecturesELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.WriteFile(path, elfBinary(t, elf.EM_X86_64), 0644))

	archs, err := Architectures(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"amd64"}, archs)
}

func TestBinaryPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "Foo.framework", "Foo"), BinaryPath(filepath.Join("a", "Foo.framework")))
}
