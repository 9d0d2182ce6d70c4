package source

import "regexp"

// feature is one detectable property of a kernel tree: either an upstream
// commit (identified by its abbreviated hash) or a Kconfig symbol.
type feature struct {
	id       string
	config   bool
	link     string
	file     string
	re       *regexp.Regexp
	exists   bool
	absent   bool
	requires string
}

func commit(id, link, file, pattern string) feature {
	return feature{id: id, link: link, file: file, re: regexp.MustCompile(pattern)}
}

func commitLiteral(id, link, file, text string) feature {
	return commit(id, link, file, regexp.QuoteMeta(text))
}

func commitExists(id, link, path string) feature {
	return feature{id: id, link: link, file: path, exists: true}
}

// commitAbsent is detected when the pattern it removed no longer matches
func commitAbsent(id, link, file, pattern string) feature {
	f := commit(id, link, file, pattern)
	f.absent = true
	return f
}

func config(symbol, file string) feature {
	return feature{
		id:     "CONFIG_" + symbol,
		config: true,
		file:   file,
		re:     regexp.MustCompile(regexp.QuoteMeta("config " + symbol)),
	}
}

func configExists(symbol, path string) feature {
	return feature{id: "CONFIG_" + symbol, config: true, file: path, exists: true}
}

func (f feature) after(id string) feature {
	f.requires = id
	return f
}

// features is evaluated in order; entries with requires depend on an
// earlier detection.
var features = []feature{
	config("CFI_CLANG", "arch/Kconfig"),
	config("HAVE_FUTEX_CMPXCHG", "init/Kconfig"),
	config("LTO_CLANG_THIN", "arch/Kconfig"),
	config("MODULE_REL_CRCS", "init/Kconfig"),
	config("PPC64_BIG_ENDIAN_ELF_ABI_V2", "arch/powerpc/Kconfig"),
	config("SHADOW_CALL_STACK", "arch/Kconfig"),
	config("WERROR", "init/Kconfig"),
	config("DRM_WERROR", "drivers/gpu/drm/Kconfig"),
	configExists("BCACHEFS_FS", "fs/bcachefs/Kconfig"),
	configExists("BPF_PRELOAD", "kernel/bpf/preload/Kconfig"),

	commitExists("6f5b41a2f5a63",
		"https://git.kernel.org/linus/6f5b41a2f5a6314614e286274eb8e985248aac60",
		"scripts/Makefile.clang"),
	commitExists("e91946d6d93ef",
		"https://git.kernel.org/linus/e91946d6d93ef6167bd3b1456f163d1585095ea1",
		"arch/mips/vdso/Kconfig"),
	commitExists("f1f99adf05f21",
		"https://git.kernel.org/linus/f1f99adf05f2138ff2646d756d4674e302e8d02d",
		"arch/hexagon/lib/divsi3.S"),
	commit("0355785313e21",
		"https://git.kernel.org/linus/0355785313e2191be4e1108cdbda94ddb0238c48",
		"arch/powerpc/Makefile", `LDFLAGS_vmlinux-\$\(CONFIG_RELOCATABLE\) \+= -z notext`),
	commitLiteral("0b5e06e9cb156",
		"https://git.kernel.org/linus/0b5e06e9cb156e7e97bfb4e1ebf6acd62497eaf5",
		"arch/powerpc/configs/pmac32_defconfig", "CONFIG_SERIAL_PMACZILOG_CONSOLE=y"),
	commitLiteral("231b232df8f67",
		"https://git.kernel.org/linus/231b232df8f67e7d37af01259c21f2a131c3911e",
		"arch/powerpc/platforms/Kconfig.cputype", "config VDSO32\n\tdef_bool y\n\tdepends on PPC32 || COMPAT"),
	commitLiteral("2255411d1d0f0",
		"https://git.kernel.org/linus/2255411d1d0f0661d1e5acd5f6edf4e6652a345a",
		"arch/powerpc/platforms/Kconfig.cputype",
		"config POWERPC_CPU\n\tbool \"Generic 32 bits powerpc\"\n\tdepends on PPC_BOOK3S_32"),
	commitLiteral("2363088eba2ec",
		"https://git.kernel.org/linus/2363088eba2ecccfb643725e4864af73c4226a04",
		"arch/loongarch/Kconfig", "select ARCH_HAS_KCOV"),
	commitLiteral("297565aa22cfa",
		"https://git.kernel.org/linus/297565aa22cfa80ab0f88c3569693aea0b6afb6d",
		"arch/powerpc/lib/xor_vmx.c", "__restrict"),
	commit("48cf12d88969b",
		"https://git.kernel.org/linus/48cf12d88969bd4238b8769767eb476970319d93",
		"arch/powerpc/kernel/irq.c", `static __always_inline void call_do_softirq\(const void \*sp\)`),
	commitLiteral("51696f39cbee5",
		"https://git.kernel.org/linus/51696f39cbee5bb684e7959c0c98b5f54548aa34",
		"arch/powerpc/kvm/book3s_hv_nested.c", "noinline_for_stack void byteswap_pt_regs"),
	commitLiteral("583bfd484bcc8",
		"https://git.kernel.org/linus/583bfd484bcc85e9371e7205fa9e827c18ae34fb",
		"arch/x86/Kconfig", "select ARCH_SUPPORTS_LTO_CLANG_THIN\n"),
	commit("6fcb574125e67",
		"https://git.kernel.org/linus/6fcb574125e673f33ff058caa54b4e65629f3a08",
		"arch/powerpc/Kconfig", "config COMPAT\n\tbool \"[a-zA-Z0-9 ]+\"\n\tdepends on PPC64\n\tdepends on !CC_IS_CLANG"),
	commit("788dcee0306e1",
		"https://git.kernel.org/linus/788dcee0306e1bdbae1a76d1b3478bb899c5838e",
		"arch/hexagon/Makefile", `KBUILD_CFLAGS \+= -mlong-calls`),
	commitLiteral("65eea6b44a5dd",
		"https://git.kernel.org/linus/65eea6b44a5dd332c50390fdaeda7e197802c484",
		"scripts/Makefile.clang", "loongarch64-linux-gnusf").after("6f5b41a2f5a63"),
	commitLiteral("80ddf5ce1c929",
		"https://git.kernel.org/linus/80ddf5ce1c9291cb175d52ed1227134ad48c47ee",
		"arch/s390/Kconfig", "config RELOCATABLE\n\tdef_bool y"),
	commit("876e480da2f74",
		"https://git.kernel.org/linus/876e480da2f74715fc70e37723e77ca16a631e35",
		"drivers/infiniband/core/cma.c", `__builtin_object_size\(sa, 0\) >= sizeof\(struct sockaddr_in`),
	commitLiteral("89245600941e4",
		"https://git.kernel.org/linus/89245600941e4e0f87d77f60ee269b5e61ef4e49",
		"Makefile", "-fsanitize=kcfi"),
	commitLiteral("925d046e7e52",
		"https://git.kernel.org/linus/925d046e7e52c71c3531199ce137e141807ef740",
		"drivers/infiniband/core/cma.c", "static void cma_netevent_work_handler"),
	commitAbsent("9451c79bc39e",
		"https://git.kernel.org/linus/9451c79bc39e610882bdd12370f01af5004a3c4f",
		"arch/powerpc/platforms/powermac/smp.c", `(?m)^volatile static long int core99_l2_cache;$`),
	commitLiteral("9d417cbe36eee",
		"https://git.kernel.org/linus/9d417cbe36eee7afdd85c2e871685f8dab7c2dba",
		"arch/arm/Kconfig", "select HAVE_FUTEX_CMPXCHG if FUTEX"),
	commit("a11334d8327b",
		"https://git.kernel.org/linus/a11334d8327b3fd7987cbfb38e956a44c722d88f",
		"arch/powerpc/Kconfig",
		`depends on CC_HAS_ELFV2\n\tdepends on LD_VERSION >= 22400 \|\| LLD_VERSION >= 150000`).
		after("CONFIG_PPC64_BIG_ENDIAN_ELF_ABI_V2"),
	commitLiteral("aaeed6ecc1253",
		"https://git.kernel.org/linus/aaeed6ecc1253ce1463fa1aca0b70a4ccbc9fa75",
		"arch/x86/Kconfig", "https://github.com/ClangBuiltLinux/linux/issues/514"),
	commitLiteral("bb73d07148c40",
		"https://git.kernel.org/linus/bb73d07148c405c293e576b40af37737faf23a6a",
		"arch/x86/tools/relocs.c", "R_386_PLT32:"),
	commitLiteral("c47c7ab9b5363",
		"https://git.kernel.org/linus/c47c7ab9b53635860c6b48736efdd22822d726d7",
		"arch/mips/configs/malta_defconfig", "CONFIG_BLK_DEV_INITRD=y"),
	commitLiteral("d5cbd80e302df",
		"https://git.kernel.org/linus/d5cbd80e302dfea59726c44c56ab7957f822409f",
		"arch/x86/boot/compressed/Makefile", "CLANG_FLAGS"),
	commitLiteral("d8e85e144bbe1",
		"https://git.kernel.org/linus/d8e85e144bbe12e8d82c6b05d690a34da62cc991",
		"arch/arm64/Kconfig", `prompt "Endianness"`),
	commit("ec3a5cb61146c",
		"https://git.kernel.org/linus/ec3a5cb61146c91f0f7dcec8b7e7157a4879a9ee",
		"arch/riscv/Makefile", `KBUILD_CFLAGS \+= -mno-relax`),
	commit("f2928e224d85e",
		"https://git.kernel.org/linus/f2928e224d85e7cc139009ab17cefdfec2df5d11",
		"arch/riscv/kernel/reset.c", `void \(\*pm_power_off\)\(void\) = NULL;`),
	commit("ffb92ce826fd8",
		"https://git.kernel.org/linus/ffb92ce826fd801acb0f4e15b75e4ddf0d189bde",
		"arch/hexagon/lib/io.c", `EXPORT_SYMBOL\(__raw_readsw\)`),
	commitAbsent("efe5e0fea4b24",
		"https://git.kernel.org/linus/efe5e0fea4b24872736c62a0bcfc3f99bebd2005",
		"arch/s390/include/asm/bitops.h", `"(o|n|x)i\t%0,%b1\\n"`),
}
