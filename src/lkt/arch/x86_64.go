package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

const crossNeedsKbuildFlags = "https://git.kernel.org/linus/d5cbd80e302dfea59726c44c56ab7957f822409f"

func x86_64Handler() *Handler {
	cfi := rules.All(rules.LLVMAtLeast(16, 0, 0), rules.Commit("89245600941e4"))
	lto := rules.Config("LTO_CLANG_THIN")
	werror := configure("werror", rules.Config("WERROR"), "CONFIG_WERROR=n")
	// STM and TEST_MEMCAT_P do not build with clang before 5.7
	stmMemcat := []rules.Rule{
		werror,
		{Name: "stm", Action: rules.Configure, Options: opts("CONFIG_STM=n"), RetiredAt: linux(5, 7, 0)},
		{Name: "test-memcat-p", Action: rules.Configure, Options: opts("CONFIG_TEST_MEMCAT_P=n"), RetiredAt: linux(5, 7, 0)},
	}
	distroStmMemcat := []rules.Rule{
		{Name: "stm", When: rules.BaseSet("STM"), Action: rules.Configure, Options: opts("CONFIG_STM=n"), RetiredAt: linux(5, 7, 0)},
		{Name: "test-memcat-p", When: rules.BaseSet("TEST_MEMCAT_P"), Action: rules.Configure, Options: opts("CONFIG_TEST_MEMCAT_P=n"), RetiredAt: linux(5, 7, 0)},
	}
	x32Objcopy := rules.All(rules.BaseSet("X86_X32_ABI"), rules.Not(rules.Commit("aaeed6ecc1253")))
	distroRules := append([]rules.Rule{
		setVars("x32-gnu-objcopy-cross", rules.All(x32Objcopy, rules.Var("CROSS_COMPILE")),
			map[string]string{"OBJCOPY": "${CROSS_COMPILE}objcopy"}),
		setVars("x32-gnu-objcopy", rules.All(x32Objcopy, rules.Not(rules.Var("CROSS_COMPILE"))),
			map[string]string{"OBJCOPY": "objcopy"}),
	}, distroStmMemcat...)

	def := func(options ...string) Candidate {
		return Candidate{Kind: Def, Target: "defconfig", Options: opts(options...), Bootable: true}
	}
	distro := func(name, config string) Candidate {
		return Candidate{Kind: Distro, Distro: name, Config: config, Bootable: true, Rules: distroRules}
	}

	return &Handler{
		Arch:        X86_64,
		ClangTarget: "x86_64-linux-gnu",
		Cross:       crossUnless("x86_64", "x86_64-linux-gnu-"),
		QEMUArch:    "x86_64",
		BootArch:    "x86_64",
		ImageTarget: "bzImage",
		Gates: []rules.Rule{
			skipArch("cross-kbuild-flags", crossNeedsKbuildFlags,
				rules.All(crossing, rules.Not(rules.Commit("d5cbd80e302df"))),
				"missing d5cbd80e302d on a non-x86_64 host"),
			setVars("ias", rules.LinuxAtLeast(5, 10, 0), map[string]string{"LLVM_IAS": "1"}),
			setVars("cross-compile", rules.All(crossing, rules.Any(
				rules.LinuxBelow(5, 10, 0), rules.Not(rules.Commit("6f5b41a2f5a63")))),
				map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			def(),
			withWhen(def("CONFIG_LTO_CLANG_THIN=y"), lto, nil),
			withWhen(def("CONFIG_CFI_CLANG=y"), cfi, &Skip{
				Name:   "x86_64 CFI configs",
				Reason: "either LLVM < 16.0.0 ('${llvm}') or lack of support in Linux",
			}),
			withWhen(def("CONFIG_CFI_CLANG=y", "CONFIG_LTO_CLANG_THIN=y"), cfi, nil),

			{Kind: Other, Target: "allmodconfig", Rules: stmMemcat},
			{
				Kind: Other, Target: "allmodconfig", When: lto,
				Options: opts("CONFIG_GCOV_KERNEL=n", "CONFIG_KASAN=n", "CONFIG_LTO_CLANG_THIN=y"),
				Rules:   []rules.Rule{werror},
			},

			distro("alpine", "x86_64"),
			distro("archlinux", "x86_64"),
			distro("debian", "amd64"),
			distro("fedora", "x86_64"),
			distro("opensuse", "x86_64"),
		},
	}
}
