// lkt builds the Linux kernel with LLVM for many architectures and boots
// the results in QEMU to catch toolchain regressions.
package main

import (
	"github.com/bitswalk/lkt/src/lkt/core"
)

func main() {
	core.Execute()
}
