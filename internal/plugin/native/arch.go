package native

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var errUnknownFormat = errors.New("not an ELF or Mach-O binary")

// Architectures returns the GOARCH names a binary was built for. Universal
// Mach-O binaries report one entry per slice.
func Architectures(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return nil, errUnknownFormat
	}

	switch {
	case bytes.Equal(magic[:], []byte(elf.ELFMAG)):
		ef, err := elf.NewFile(f)
		if err != nil {
			return nil, err
		}
		return []string{elfArch(ef)}, nil

	case binary.BigEndian.Uint32(magic[:]) == macho.MagicFat:
		ff, err := macho.NewFatFile(f)
		if err != nil {
			return nil, err
		}
		archs := make([]string, 0, len(ff.Arches))
		for _, a := range ff.Arches {
			archs = append(archs, machoArch(a.Cpu))
		}
		return archs, nil

	case isMachO(magic):
		mf, err := macho.NewFile(f)
		if err != nil {
			return nil, err
		}
		return []string{machoArch(mf.Cpu)}, nil
	}
	return nil, errUnknownFormat
}

func isMachO(magic [4]byte) bool {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		switch order.Uint32(magic[:]) {
		case macho.Magic32, macho.Magic64:
			return true
		}
	}
	return false
}

func elfArch(f *elf.File) string {
	switch f.Machine {
	case elf.EM_X86_64:
		return "amd64"
	case elf.EM_386:
		return "386"
	case elf.EM_AARCH64:
		return "arm64"
	case elf.EM_ARM:
		return "arm"
	case elf.EM_RISCV:
		if f.Class == elf.ELFCLASS64 {
			return "riscv64"
		}
	case elf.EM_PPC64:
		if f.ByteOrder == binary.LittleEndian {
			return "ppc64le"
		}
		return "ppc64"
	case elf.EM_S390:
		return "s390x"
	case elf.EM_LOONGARCH:
		return "loong64"
	case elf.EM_MIPS:
		le := f.ByteOrder == binary.LittleEndian
		switch {
		case f.Class == elf.ELFCLASS64 && le:
			return "mips64le"
		case f.Class == elf.ELFCLASS64:
			return "mips64"
		case le:
			return "mipsle"
		default:
			return "mips"
		}
	}
	return fmt.Sprintf("elf:%s", f.Machine)
}

func machoArch(cpu macho.Cpu) string {
	switch cpu {
	case macho.CpuAmd64:
		return "amd64"
	case macho.Cpu386:
		return "386"
	case macho.CpuArm64:
		return "arm64"
	case macho.CpuArm:
		return "arm"
	case macho.CpuPpc64:
		return "ppc64"
	}
	return fmt.Sprintf("macho:%s", cpu)
}
