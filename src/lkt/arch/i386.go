package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

// fortifyBroken holds when security/Kconfig marks FORTIFY_SOURCE as broken
// with clang
var fortifyBroken = rules.Any(
	rules.FileContains("security/Kconfig", "https://bugs.llvm.org/show_bug.cgi?id=50322"),
	rules.FileContains("security/Kconfig", "https://llvm.org/pr50322"),
	rules.FileContains("security/Kconfig", "https://github.com/llvm/llvm-project/issues/53645"),
)

var i386FortifyRules = []rules.Rule{
	configure("fortify-bcachefs",
		rules.All(fortifyBroken, rules.Config("BCACHEFS_FS")),
		"CONFIG_BCACHEFS_FS=n"),
	configure("fortify-synproxy",
		rules.All(fortifyBroken, rules.LLVMBelow(15, 0, 0)),
		"CONFIG_IP_NF_TARGET_SYNPROXY=n", "CONFIG_IP6_NF_TARGET_SYNPROXY=n", "CONFIG_NFT_SYNPROXY=n"),
}

func i386Handler() *Handler {
	notX86Host := rules.Not(rules.Host("x86_64"))

	def := func(options ...string) Candidate {
		return Candidate{Kind: Def, Target: "defconfig", Options: opts(options...), Bootable: true}
	}
	distro := func(name string) Candidate {
		return Candidate{Kind: Distro, Distro: name, Config: "i386", Rules: i386FortifyRules}
	}

	return &Handler{
		Arch:        I386,
		ClangTarget: "i386-linux-gnu",
		Cross:       fixedCross("x86_64-linux-gnu-"),
		QEMUArch:    "i386",
		BootArch:    "x86",
		ImageTarget: "bzImage",
		Vars:        map[string]string{"LLVM_IAS": "1"},
		Gates: []rules.Rule{
			skipArch("i386-5.9", "https://github.com/ClangBuiltLinux/linux/issues/194",
				rules.LinuxBelow(5, 9, 0), "missing 158807de5822"),
			skipArch("r-386-plt32", "https://github.com/ClangBuiltLinux/linux/issues/1210",
				rules.All(rules.LLVMAtLeast(12, 0, 0), rules.Not(rules.Commit("bb73d07148c40"))),
				"missing bb73d07148c4 with LLVM > 12.0.0"),
			skipArch("cross-kbuild-flags", crossNeedsKbuildFlags,
				rules.All(notX86Host, rules.Not(rules.Commit("d5cbd80e302df"))),
				"missing d5cbd80e302d on a non-x86_64 host"),
			setVars("cross-compile", rules.All(notX86Host, rules.Not(rules.Commit("6f5b41a2f5a63"))),
				map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			def(),
			withWhen(def("CONFIG_LTO_CLANG_THIN=y"), rules.Commit("583bfd484bcc8"), nil),

			{Kind: Other, Target: "allmodconfig", Rules: i386FortifyRules},
			{Kind: Other, Target: "allnoconfig"},
			{Kind: Other, Target: "tinyconfig"},

			distro("debian"),
			distro("opensuse"),
		},
	}
}
