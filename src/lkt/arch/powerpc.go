package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

// ppc64leVars are shared by the little endian 64-bit scenarios
var ppc64leVars = []rules.Rule{
	setVars("ppc64le-gnu-ld", rules.Not(rules.Commit("0355785313e21")),
		map[string]string{"LD": "${CROSS_COMPILE}ld"}),
	setVars("ppc64le-ias", rules.All(rules.LinuxAtLeast(5, 18, 0), rules.LLVMAtLeast(14, 0, 0)),
		map[string]string{"LLVM_IAS": "1"}),
}

func powerpcHandler() *Handler {
	bigEndianELFv2 := rules.All(rules.Config("PPC64_BIG_ENDIAN_ELF_ABI_V2"),
		rules.Not(rules.FileContains("arch/powerpc/Kconfig", "depends on CC_HAS_ELFV2\n\tdepends on LD_IS_BFD")))

	distro := func(name, config string) Candidate {
		c := Candidate{Kind: Distro, Distro: name, Config: config, Bootable: true, Rules: ppc64leVars}
		if name == "opensuse" {
			c.Rules = concat([]rules.Rule{{
				Name:   "cbl-1160",
				Link:   "https://github.com/ClangBuiltLinux/linux/issues/1160",
				Action: rules.SkipScenario,
				When: rules.All(rules.Commit("231b232df8f67"), rules.Not(rules.Commit("6fcb574125e67")),
					rules.LLVMBelow(12, 0, 1)),
				Reason: "https://github.com/ClangBuiltLinux/linux/issues/1160",
			}}, ppc64leVars)
		}
		return c
	}

	return &Handler{
		Arch:        PowerPC,
		ClangTarget: "powerpc-linux-gnu",
		Cross:       firstCross("powerpc64-linux-gnu-", "powerpc-linux-gnu-", "powerpc64le-linux-gnu-"),
		QEMUArch:    "ppc64",
		BootArch:    "ppc64le",
		ImageTarget: "zImage.epapr",
		Gates: []rules.Rule{
			setVars("cross-compile", nil, map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			{
				Kind: Def, Target: "ppc44x_defconfig", Bootable: true,
				BootArch: "ppc32", QEMUArch: "ppc", ImageTarget: "uImage",
				Targets: func(e *rules.Env) []string {
					if e.OnlyTestBoot {
						return nil
					}
					return []string{"uImage"}
				},
				When: rules.Not(rules.Commit("2255411d1d0f0")),
				Unmet: &Skip{
					Name:   "powerpc ppc44x_defconfig",
					Reason: "2255411d1d0f0 (https://github.com/ClangBuiltLinux/linux/issues/1679)",
				},
				Rules: []rules.Rule{
					skipBoot("cbl-1345", "https://github.com/ClangBuiltLinux/linux/issues/1345",
						rules.All(rules.LLVMBelow(12, 0, 1), rules.Commit("48cf12d88969b")),
						"https://github.com/ClangBuiltLinux/linux/issues/1345"),
				},
			},
			{
				Kind: Def, Target: "pmac32_defconfig", Bootable: true,
				BootArch: "ppc32_mac", QEMUArch: "ppc", ImageTarget: "vmlinux",
				Options: opts("CONFIG_SERIAL_PMACZILOG=y", "CONFIG_SERIAL_PMACZILOG_CONSOLE=y"),
				When:    rules.Commit("297565aa22cfa"),
				Unmet: &Skip{
					Name:   "powerpc pmac32_defconfig",
					Reason: "missing 297565aa22cfa (https://github.com/ClangBuiltLinux/linux/issues/563)",
				},
				Rules: []rules.Rule{
					skipBoot("pmac32-llvm-14", "", rules.LLVMBelow(14, 0, 0), "LLVM < 14.0.0 (lack of 1e3c6fc7cb9d2)"),
				},
			},
			{
				Kind: Def, Target: "pseries_defconfig", Bootable: true,
				BootArch: "ppc64", ImageTarget: "vmlinux",
				Rules: []rules.Rule{
					{
						Name:    "cbl-1292-cbl-1445",
						Link:    "https://github.com/ClangBuiltLinux/linux/issues/1445",
						Action:  rules.Configure,
						Options: opts("CONFIG_PPC_DISABLE_WERROR=y"),
						When: rules.Any(
							rules.All(rules.Not(rules.Commit("51696f39cbee5")), rules.LLVMAtLeast(12, 0, 0)),
							rules.All(rules.LinuxAtLeast(5, 18, 0), rules.LLVMBelow(14, 0, 0))),
					},
					setVars("pseries-gnu-ld", nil, map[string]string{"LD": "${CROSS_COMPILE}ld"}),
				},
			},
			{
				Kind: Def, Target: "powernv_defconfig", Bootable: true,
				Rules: concat(ppc64leVars, []rules.Rule{
					setVars("powernv-gnu-ld", rules.LLVMBelow(12, 0, 0), map[string]string{"LD": "${CROSS_COMPILE}ld"}),
				}),
			},
			{Kind: Def, Target: "ppc64le_defconfig", When: rules.Not(rules.OnlyTestBoot), Rules: ppc64leVars},

			{
				Kind: Other, Target: "allmodconfig", When: bigEndianELFv2,
				Options: opts("CONFIG_PPC64_BIG_ENDIAN_ELF_ABI_V2=y", "CONFIG_WERROR=n"),
				Rules:   ppc64leVars,
			},
			{Kind: Other, Target: "allnoconfig"},
			{Kind: Other, Target: "tinyconfig"},

			distro("debian", "powerpc64le"),
			distro("fedora", "ppc64le"),
			distro("opensuse", "ppc64le"),
		},
	}
}
