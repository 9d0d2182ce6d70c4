package arch

import "github.com/bitswalk/lkt/src/lkt/rules"

func s390Handler() *Handler {
	distro := func(name string) Candidate {
		c := Candidate{Kind: Distro, Distro: name, Config: "s390x", Bootable: true}
		if name == "fedora" {
			c.Rules = []rules.Rule{
				configure("fedora-march", rules.Not(rules.Commit("efe5e0fea4b24")),
					"CONFIG_MARCH_Z13=n", "CONFIG_MARCH_Z196=y"),
			}
		}
		return c
	}

	return &Handler{
		Arch:        S390,
		ClangTarget: "s390x-linux-gnu",
		Cross:       fixedCross("s390x-linux-gnu-"),
		BinutilsAs:  "s390x-linux-gnu-as",
		QEMUArch:    "s390x",
		BootArch:    "s390",
		ImageTarget: "bzImage",
		Vars: map[string]string{
			"LD":      "s390x-linux-gnu-ld",
			"OBJCOPY": "s390x-linux-gnu-objcopy",
			"OBJDUMP": "s390x-linux-gnu-objdump",
		},
		Gates: []rules.Rule{
			skipArch("s390-5.6", "https://lore.kernel.org/r/your-ad-here.call-01580230449-ext-6884@work.hours/",
				rules.LinuxBelow(5, 6, 0),
				"missing fixes from 5.6 (https://lore.kernel.org/r/your-ad-here.call-01580230449-ext-6884@work.hours/)"),
			skipArch("cbl-1747", "https://github.com/ClangBuiltLinux/linux/issues/1747",
				rules.All(rules.BinutilsAtLeast(2, 39, 50), rules.Not(rules.Commit("80ddf5ce1c929"))),
				"linker error with CONFIG_RELOCATABLE=n (https://github.com/ClangBuiltLinux/linux/issues/1747)"),
			skipArch("s390-min-llvm", "",
				rules.All(minLLVMAbove(13, 0, 0), rules.LLVMBelowMin(13, 0, 0)), "LLVM < ${minllvm}"),
			// 13.0.0 also avoids failures from backports of commits that came
			// after the minimum version change in 5.14
			skipArch("s390-llvm-13", "", rules.LLVMBelow(13, 0, 0), "LLVM < 13.0.0"),
			setVars("ias", rules.LinuxAtLeast(5, 19, 0), map[string]string{"LLVM_IAS": "1"}),
			setVars("cross-compile", rules.LinuxBelow(5, 19, 0), map[string]string{"CROSS_COMPILE": "${cross}"}),
		},
		Candidates: []Candidate{
			{Kind: Def, Target: "defconfig", Bootable: true},

			{
				Kind: Other, Target: "allmodconfig",
				Rules: []rules.Rule{
					configure("infiniband-addr-trans",
						rules.All(rules.Commit("925d046e7e52"), rules.Not(rules.Commit("876e480da2f74"))),
						"CONFIG_INFINIBAND_ADDR_TRANS=n"),
				},
			},
			{Kind: Other, Target: "allnoconfig"},
			{Kind: Other, Target: "tinyconfig"},

			distro("debian"),
			distro("fedora"),
			distro("opensuse"),
		},
		Rules: []rules.Rule{
			skipBoot("qemu-6.0", "", rules.QEMUBelow(6, 0, 0), "qemu older than 6.0.0 (found ${qemu})"),
		},
	}
}
