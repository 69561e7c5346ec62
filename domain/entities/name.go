package entities

import (
	"fmt"
	"strings"
)

// MaxModuleNameLen is the longest module name the load path supports. The
// name is copied into a fixed ModuleName buffer before the host allocator is
// available, leaving one byte for the NUL terminator.
const MaxModuleNameLen = 63

// ModuleName is the fixed-capacity, NUL-terminated module name handed to the
// host handshake. It is a value type so it lives on the stack.
type ModuleName [MaxModuleNameLen + 1]byte

// FillModuleName copies name into buf without allocating. It fails when the
// name is empty, too long, or contains a NUL byte.
func FillModuleName(buf *ModuleName, name string) bool {
	if len(name) == 0 || len(name) > MaxModuleNameLen {
		return false
	}
	if strings.IndexByte(name, 0) >= 0 {
		return false
	}
	n := copy(buf[:], name)
	buf[n] = 0
	return true
}

// Len returns the number of bytes before the NUL terminator.
func (b *ModuleName) Len() int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

// String returns the name. It allocates, so it must not be used before the
// handshake has completed.
func (b *ModuleName) String() string {
	return string(b[:b.Len()])
}

// ValidateModuleName reports why name cannot be used as a module name.
func ValidateModuleName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("module name cannot be empty")
	case len(name) > MaxModuleNameLen:
		return fmt.Errorf("module name %q exceeds %d bytes", name, MaxModuleNameLen)
	case strings.IndexByte(name, 0) >= 0:
		return fmt.Errorf("module name %q contains a NUL byte", name)
	}
	return nil
}
