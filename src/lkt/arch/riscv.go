package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

func riscvHandler() *Handler {
	// allmodconfig and the distribution configs need -mno-relax from
	// ec3a5cb61146 and fixes from after 5.8
	relaxed := rules.All(rules.LinuxAtLeast(5, 8, 1), rules.Commit("ec3a5cb61146c"))

	distro := func(name string) Candidate {
		return Candidate{
			Kind: Distro, Distro: name, Config: "riscv64", Bootable: true, When: relaxed,
			Rules: []rules.Rule{
				skipBoot("pm-power-off", "https://git.kernel.org/linus/f2928e224d85e7cc139009ab17cefdfec2df5d11",
					rules.Not(rules.Commit("f2928e224d85e")), "lack of f2928e224d85e"),
			},
		}
	}

	return &Handler{
		Arch:        RISCV,
		ClangTarget: "riscv64-linux-gnu",
		Cross:       fixedCross("riscv64-linux-gnu-"),
		QEMUArch:    "riscv64",
		BootArch:    "riscv",
		ImageTarget: "Image",
		Gates: []rules.Rule{
			skipArch("riscv-5.7", "https://git.kernel.org/linus/52e7c52d2ded5908e6a4f8a7248e5fa6e0d6809a",
				rules.LinuxBelow(5, 7, 0), "missing 52e7c52d2ded, fdff9911f266, and/or abc71bf0a703"),
			setVars("ias", rules.LLVMAtLeast(13, 0, 0), map[string]string{"LLVM_IAS": "1"}),
			setVars("cross-compile", rules.Any(rules.LLVMBelow(13, 0, 0), rules.Not(rules.Commit("6f5b41a2f5a63"))),
				map[string]string{"CROSS_COMPILE": "${cross}"}),
			setVars("gnu-ld", rules.Any(rules.LLVMBelow(13, 0, 0), rules.Not(rules.Commit("ec3a5cb61146c")),
				rules.LinuxBelow(5, 11, 0)),
				map[string]string{"LD": "${cross}ld"}),
		},
		Candidates: []Candidate{
			{
				Kind: Def, Target: "defconfig", Bootable: true,
				Rules: []rules.Rule{
					configure("efi-llvm-13",
						rules.All(rules.LLVMBelow(13, 0, 0), rules.FileContains("arch/riscv/Kconfig", "config EFI")),
						"CONFIG_EFI=n"),
				},
			},

			{Kind: Other, Target: "allmodconfig", When: relaxed},

			distro("alpine"),
			distro("opensuse"),
		},
	}
}
