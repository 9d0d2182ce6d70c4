package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

func arm64Handler() *Handler {
	lto := rules.Config("LTO_CLANG_THIN")
	cfi := rules.Config("CFI_CLANG")
	werror := configure("werror", rules.Config("WERROR"), "CONFIG_WERROR=n")

	def := func(options ...string) Candidate {
		return Candidate{Kind: Def, Target: "defconfig", Options: opts(options...), Bootable: true}
	}
	distro := func(name, config string) Candidate {
		c := Candidate{Kind: Distro, Distro: name, Config: config, Bootable: true}
		if name == "fedora" {
			c.Rules = []rules.Rule{
				{Name: "stm", When: rules.BaseSet("STM"), Action: rules.Configure, Options: opts("CONFIG_STM=n"), RetiredAt: linux(5, 7, 0)},
				{Name: "test-memcat-p", When: rules.BaseSet("TEST_MEMCAT_P"), Action: rules.Configure, Options: opts("CONFIG_TEST_MEMCAT_P=n"), RetiredAt: linux(5, 7, 0)},
			}
		}
		return c
	}

	bigEndian := def("CONFIG_CPU_BIG_ENDIAN=y")
	bigEndian.BootArch = "arm64be"

	return &Handler{
		Arch:        ARM64,
		ClangTarget: "aarch64-linux-gnu",
		Cross:       crossUnless("aarch64", "aarch64-linux-gnu-"),
		QEMUArch:    "aarch64",
		BootArch:    "arm64",
		ImageTarget: "Image.gz",
		Gates: []rules.Rule{
			setVars("ias", rules.LinuxAtLeast(5, 10, 0), map[string]string{"LLVM_IAS": "1"}),
			setVars("cross-compile", rules.All(crossing, rules.Any(
				rules.LinuxBelow(5, 10, 0), rules.Not(rules.Commit("6f5b41a2f5a63")))),
				map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			withWhen(Candidate{Kind: Def, Target: "virtconfig", Bootable: true},
				rules.Exists("arch/arm64/configs/virt.config"), nil),
			def(),
			withWhen(bigEndian, rules.LLVMAtLeast(13, 0, 0), nil),
			withWhen(def("CONFIG_LTO_CLANG_THIN=y"), lto, nil),
			withWhen(def("CONFIG_CFI_CLANG=y", "CONFIG_SHADOW_CALL_STACK=y"),
				rules.All(cfi, rules.Commit("89245600941e4")), nil),
			withWhen(def("CONFIG_CFI_CLANG=y", "CONFIG_LTO_CLANG_THIN=y", "CONFIG_SHADOW_CALL_STACK=y"), cfi, nil),
			withWhen(def("CONFIG_SHADOW_CALL_STACK=y"),
				rules.All(rules.Not(cfi), rules.Config("SHADOW_CALL_STACK")), nil),

			{
				Kind: Other, Target: "allmodconfig",
				Rules: []rules.Rule{
					configure("big-endian-allmod", rules.Not(rules.Commit("d8e85e144bbe1")), "CONFIG_CPU_BIG_ENDIAN=n"),
				},
			},
			withWhen(Candidate{
				Kind: Other, Target: "allmodconfig",
				Options: opts("CONFIG_GCOV_KERNEL=n", "CONFIG_KASAN=n", "CONFIG_LTO_CLANG_THIN=y"),
				Rules:   []rules.Rule{werror},
			}, lto, nil),
			{Kind: Other, Target: "allnoconfig"},
			{Kind: Other, Target: "tinyconfig"},

			distro("alpine", "aarch64"),
			distro("archlinux", "aarch64"),
			distro("debian", "arm64"),
			distro("fedora", "aarch64"),
			distro("opensuse", "arm64"),
		},
	}
}
