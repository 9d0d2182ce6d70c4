package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

func hexagonHandler() *Handler {
	return &Handler{
		Arch:        Hexagon,
		ClangTarget: "hexagon-linux-musl",
		Cross:       fixedCross("hexagon-linux-musl"),
		Vars:        map[string]string{"LLVM_IAS": "1"},
		Gates: []rules.Rule{
			skipArch("only-test-boot", "", rules.OnlyTestBoot, "only testing boot"),
			skipArch("hexagon-5.13", "https://git.kernel.org/linus/788dcee0306e1bdbae1a76d1b3478bb899c5838e",
				rules.Not(rules.All(rules.Commit("788dcee0306e1"), rules.Commit("f1f99adf05f21"))),
				"missing 788dcee0306e, 6fff7410f6be, and/or f1f99adf05f2"),
			setVars("cross-compile", rules.Not(rules.Commit("6f5b41a2f5a63")),
				map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			{Kind: Def, Target: "defconfig"},
			{
				Kind: Other, Target: "allmodconfig",
				When: rules.All(rules.Commit("ffb92ce826fd8"), rules.LLVMAtLeast(13, 0, 0)),
				Unmet: &Skip{
					Name:   "hexagon allmodconfig",
					Reason: "either lack of ffb92ce826fd8 or LLVM < 13.0.0 ('${llvm}')",
				},
			},
		},
	}
}
