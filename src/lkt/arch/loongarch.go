package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

// loongarchBroken are disabled in every LoongArch scenario. Modules need
// __attribute__((model("extreme"))) in clang; without --apply-dynamic-relocs
// ld.lld leaves a relocatable kernel unbootable.
var loongarchBroken = []rules.Rule{
	configure("modules-model-extreme", nil, "CONFIG_MODULES=n"),
	configure("relocatable-dynamic-relocs",
		rules.Not(rules.FileContains("arch/loongarch/Makefile", "--apply-dynamic-relocs")),
		"CONFIG_CRASH_DUMP=n", "CONFIG_RELOCATABLE=n"),
}

func loongarchHandler() *Handler {
	kcovWerror := []rules.Rule{
		configure("kcov", rules.Commit("2363088eba2ec"), "CONFIG_KCOV=n"),
		configure("werror", rules.Config("WERROR"), "CONFIG_WERROR=n"),
	}
	withBroken := func(extra ...rules.Rule) []rules.Rule {
		return concat(loongarchBroken, extra)
	}

	return &Handler{
		Arch:        LoongArch,
		ClangTarget: "loongarch64-linux-gnusf",
		QEMUArch:    "loongarch64",
		BootArch:    "loongarch",
		ImageTarget: "vmlinuz.efi",
		Vars:        map[string]string{"LLVM_IAS": "1"},
		Gates: []rules.Rule{
			skipArch("loongarch-llvm-17", "", rules.LLVMBelow(17, 0, 0), "LLVM < 17.0.0"),
			skipArch("loongarch-6.5", "https://git.kernel.org/torvalds/l/65eea6b44a5dd332c50390fdaeda7e197802c484",
				rules.Not(rules.Commit("65eea6b44a5dd")), "missing 65eea6b44a5dd"),
		},
		Candidates: []Candidate{
			{Kind: Def, Target: "defconfig", Bootable: true, Rules: withBroken()},
			{
				Kind: Def, Target: "defconfig", Bootable: true,
				Rules: withBroken(configure("lto", nil, "CONFIG_LTO_CLANG_THIN=y")),
			},
			{Kind: Other, Target: "allyesconfig", Rules: withBroken(kcovWerror...)},
			{
				Kind: Other, Target: "allyesconfig",
				Rules: withBroken(append([]rules.Rule{
					configure("lto", nil, "CONFIG_FTRACE=n", "CONFIG_GCOV_KERNEL=n", "CONFIG_LTO_CLANG_THIN=y"),
				}, kcovWerror...)...),
			},
		},
		Rules: []rules.Rule{
			skipBoot("qemu-8.0", "", rules.QEMUBelow(8, 0, 0), "qemu older than 8.0.0 (found ${qemu})"),
		},
	}
}
