package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

// armBigEndianBroken holds unless arch/arm/mm/Kconfig already hides
// CPU_BIG_ENDIAN from ld.lld
var armBigEndianBroken = rules.Not(rules.FileMatches("arch/arm/mm/Kconfig",
	`(bool "Build big-endian kernel"|depends on ARCH_SUPPORTS_BIG_ENDIAN)\n\tdepends on !LD_IS_LLD`))

// aspeedDTB builds the device tree boot-utils needs when only the image
// target is built
func aspeedDTB(board string) func(*rules.Env) []string {
	return func(e *rules.Env) []string {
		if !e.OnlyTestBoot {
			return nil
		}
		prefix := ""
		if e.Tree != nil && e.Tree.IsDir("arch/arm/boot/dts/aspeed") {
			prefix = "aspeed/"
		}
		return []string{prefix + "aspeed-bmc-opp-" + board + ".dtb"}
	}
}

func armHandler() *Handler {
	iasOK := rules.All(rules.LLVMAtLeast(13, 0, 0), rules.LinuxAtLeast(5, 13, 0))

	distro := func(name, config string) Candidate {
		return Candidate{Kind: Distro, Distro: name, Config: config, Bootable: name != "fedora"}
	}

	return &Handler{
		Arch:        ARM,
		ClangTarget: "arm-linux-gnueabi",
		Cross:       firstCross("arm-linux-gnu-", "arm-linux-gnueabihf-", "arm-linux-gnueabi-"),
		QEMUArch:    "arm",
		BootArch:    "arm32_v7",
		ImageTarget: "zImage",
		Gates: []rules.Rule{
			setVars("ias", iasOK, map[string]string{"LLVM_IAS": "1"}),
			setVars("cross-compile", rules.Any(rules.Not(iasOK), rules.Not(rules.Commit("6f5b41a2f5a63"))),
				map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			{Kind: Def, Target: "multi_v5_defconfig", Bootable: true, BootArch: "arm32_v5", Targets: aspeedDTB("palmetto")},
			{Kind: Def, Target: "aspeed_g5_defconfig", Bootable: true, BootArch: "arm32_v6", Targets: aspeedDTB("romulus")},
			{Kind: Def, Target: "multi_v7_defconfig", Bootable: true, BootArch: "arm32_v7"},
			{
				Kind: Def, Target: "multi_v7_defconfig", Bootable: true,
				Options: opts("CONFIG_THUMB2_KERNEL=y"),
				When:    rules.Any(rules.Commit("9d417cbe36eee"), rules.Not(rules.Config("HAVE_FUTEX_CMPXCHG"))),
			},

			{
				Kind: Other, Target: "allmodconfig",
				Rules: []rules.Rule{configure("big-endian-lld", armBigEndianBroken, "CONFIG_CPU_BIG_ENDIAN=n")},
			},
			{Kind: Other, Target: "allnoconfig"},
			{Kind: Other, Target: "tinyconfig"},

			distro("alpine", "armv7"),
			distro("archlinux", "armv7"),
			distro("debian", "armmp"),
			distro("fedora", "armv7hl"),
			distro("opensuse", "armv7hl"),
		},
	}
}
