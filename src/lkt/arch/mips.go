package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

func mipsHandler() *Handler {
	initrd := configure("malta-initrd", rules.Not(rules.Commit("c47c7ab9b5363")), "CONFIG_BLK_DEV_INITRD=y")
	// big endian images need GNU ld with the vDSO from e91946d6d93e
	// until LLVM 13
	bigEndianLD := setVars("big-endian-ld",
		rules.All(rules.Commit("e91946d6d93ef"), rules.LLVMBelow(13, 0, 0)),
		map[string]string{"LD": "${cross}ld"})
	gnuAs := setVars("32r1-gnu-as", nil, map[string]string{"CROSS_COMPILE": "${cross}", "LLVM_IAS": "0"})

	malta := func(options ...string) Candidate {
		return Candidate{
			Kind: Def, Target: "malta_defconfig", Bootable: true,
			Options: opts(options...),
			Rules:   []rules.Rule{initrd},
		}
	}
	bigEndian := malta("CONFIG_CPU_BIG_ENDIAN=y")
	bigEndian.BootArch = "mips"
	bigEndian.QEMUArch = "mips"
	bigEndian.Rules = append(bigEndian.Rules, bigEndianLD)

	generic := func(name string) Candidate {
		c := Candidate{Kind: Def, Target: name + "_defconfig", When: rules.Not(rules.OnlyTestBoot)}
		if name == "32r1" || name == "32r1el" {
			c.Rules = append(c.Rules, gnuAs)
		}
		if name[len(name)-2:] != "el" {
			c.Rules = append(c.Rules, bigEndianLD)
		}
		if name == "32r6" || name == "32r6el" {
			c.When = rules.All(c.When, rules.LLVMAtLeast(12, 0, 0))
		}
		return c
	}

	return &Handler{
		Arch:        MIPS,
		ClangTarget: "mips-linux-gnu",
		// the last of mips64, mips and mipsel that is installed wins
		Cross:       firstCross("mipsel-linux-gnu-", "mips-linux-gnu-", "mips64-linux-gnu-"),
		QEMUArch:    "mipsel",
		BootArch:    "mipsel",
		ImageTarget: "vmlinux",
		Gates: []rules.Rule{
			setVars("ias", rules.LinuxAtLeast(5, 15, 0), map[string]string{"LLVM_IAS": "1"}),
			setVars("cross-compile", rules.LinuxBelow(5, 15, 0), map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			malta(),
			malta("CONFIG_RELOCATABLE=y", "CONFIG_RELOCATION_TABLE_SIZE=0x00200000", "CONFIG_RANDOMIZE_BASE=y"),
			bigEndian,
			generic("32r1"),
			generic("32r1el"),
			generic("32r2"),
			generic("32r2el"),
			generic("32r6"),
			generic("32r6el"),

			{Kind: Other, Target: "allnoconfig", Rules: []rules.Rule{bigEndianLD}},
			{Kind: Other, Target: "tinyconfig", Rules: []rules.Rule{bigEndianLD}},
		},
	}
}
