package arch

import lkterrors "github.com/bitswalk/lkt/src/common/errors"

var handlers = map[Arch]func() *Handler{
	ARM:       armHandler,
	ARM64:     arm64Handler,
	Hexagon:   hexagonHandler,
	I386:      i386Handler,
	LoongArch: loongarchHandler,
	MIPS:      mipsHandler,
	PowerPC:   powerpcHandler,
	RISCV:     riscvHandler,
	S390:      s390Handler,
	X86_64:    x86_64Handler,
}

// For returns a fresh handler table for a
func For(a Arch) (*Handler, error) {
	fn, ok := handlers[a]
	if !ok {
		return nil, lkterrors.ErrUnknownArchitecture.WithMessagef("no handler for %s", a)
	}
	return fn(), nil
}
