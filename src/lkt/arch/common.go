package arch

import (
	"github.com/bitswalk/lkt/src/lkt/kconfig"
	"github.com/bitswalk/lkt/src/lkt/probe"
	"github.com/bitswalk/lkt/src/lkt/rules"
)

func configure(name string, when rules.Cond, opts ...string) rules.Rule {
	return rules.Rule{Name: name, When: when, Action: rules.Configure, Options: kconfig.MustParse(opts...)}
}

func adjust(name string, when rules.Cond, opts ...string) rules.Rule {
	return rules.Rule{Name: name, When: when, Action: rules.Adjust, Options: kconfig.MustParse(opts...)}
}

func setVars(name string, when rules.Cond, vars map[string]string) rules.Rule {
	return rules.Rule{Name: name, When: when, Action: rules.SetVars, Vars: vars}
}

func skipArch(name, link string, when rules.Cond, reason string) rules.Rule {
	return rules.Rule{Name: name, Link: link, When: when, Action: rules.SkipArch, Reason: reason}
}

func skipBoot(name, link string, when rules.Cond, reason string) rules.Rule {
	return rules.Rule{Name: name, Link: link, When: when, Action: rules.SkipBoot, Reason: reason}
}

func opts(items ...string) []kconfig.Option {
	return kconfig.MustParse(items...)
}

func linux(major, minor, patch int) probe.LinuxCode {
	return probe.NewLinuxCode(major, minor, patch)
}

func withWhen(c Candidate, when rules.Cond, unmet *Skip) Candidate {
	c.When = when
	c.Unmet = unmet
	return c
}

// crossing holds when the architecture has a cross prefix on this host
func crossing(e *rules.Env) bool {
	return e.Cross != ""
}

// minLLVMAbove holds when the tree's declared minimum LLVM is newer than
// major.minor.patch
func minLLVMAbove(major, minor, patch int) rules.Cond {
	floor := probe.NewToolCode(major, minor, patch)
	return func(e *rules.Env) bool { return e.MinLLVM > floor }
}

// firstCross picks the first prefix whose assembler is on PATH, falling
// back to the last one
func firstCross(prefixes ...string) func(*rules.Env) string {
	return func(e *rules.Env) string {
		for _, p := range prefixes {
			if e.Has(p + "as") {
				return p
			}
		}
		return prefixes[len(prefixes)-1]
	}
}

// crossUnless uses prefix except when building on the native machine
func crossUnless(native, prefix string) func(*rules.Env) string {
	return func(e *rules.Env) string {
		if e.Host == native {
			return ""
		}
		return prefix
	}
}

func fixedCross(prefix string) func(*rules.Env) string {
	return func(*rules.Env) string { return prefix }
}

// werrorRules turn off -Werror for allmodconfig along with the subsystem
// specific switches that exist in the tree
var werrorRules = []rules.Rule{
	configure("allmodconfig-werror",
		rules.All(rules.Target("allmodconfig"), rules.Config("WERROR")),
		"CONFIG_WERROR=n"),
	configure("subsystem-werror",
		rules.All(rules.Requested("CONFIG_WERROR=n"), rules.Config("DRM_WERROR")),
		"CONFIG_DRM_WERROR=n"),
}

// distroPrepRules are visible in the scenario name
var distroPrepRules = []rules.Rule{
	{
		Name:    "btf-pahole",
		Link:    "https://github.com/ClangBuiltLinux/linux/issues/871",
		Action:  rules.Configure,
		Options: opts("CONFIG_DEBUG_INFO_BTF=n"),
		When: rules.All(rules.IsDistro(), rules.BaseSet("DEBUG_INFO_BTF"),
			rules.Not(rules.All(rules.Tool("pahole"), rules.LinuxAtLeast(5, 7, 0)))),
	},
	configure("bpf-preload",
		rules.All(rules.IsDistro(), rules.Config("BPF_PRELOAD"), rules.BaseSet("BPF_PRELOAD")),
		"CONFIG_BPF_PRELOAD=n"),
	configure("archlinux-extra-firmware",
		rules.All(rules.IsDistro("archlinux"), rules.BaseSet("EXTRA_FIRMWARE")),
		`CONFIG_EXTRA_FIRMWARE=""`),
	configure("debian-trusted-keys",
		rules.All(rules.IsDistro("debian"), rules.BaseSet("SYSTEM_TRUSTED_KEYS")),
		"CONFIG_SYSTEM_TRUSTED_KEYS=n"),
	// EFI_ZBOOT changes the default image target, which boot-utils does not expect
	configure("efi-zboot",
		rules.All(rules.IsDistro(), rules.DistroConfig("aarch64", "arm64"), rules.BaseSet("EFI_ZBOOT")),
		"CONFIG_EFI_ZBOOT=n"),
}

// moduleCompat lists symbols that could only be built as modules during
// part of their history, with the Kconfig file that declares them
var moduleCompat = buildModuleCompat()

type compatEntry struct {
	symbol string
	file   string
}

func buildModuleCompat() []compatEntry {
	var out []compatEntry
	add := func(file string, symbols ...string) {
		for _, s := range symbols {
			out = append(out, compatEntry{symbol: s, file: file})
		}
	}
	suffixed := func(prefix string, suffixes ...string) []string {
		syms := make([]string, len(suffixes))
		for i, s := range suffixes {
			syms[i] = prefix + s
		}
		return syms
	}

	add("drivers/acpi/Kconfig", "ACPI_HED")
	add("drivers/cpufreq/Kconfig.arm", "ARM_TEGRA124_CPUFREQ")
	add("drivers/firmware/arm_scmi/transports/Kconfig", "ARM_SCMI_TRANSPORT_OPTEE")
	add("drivers/irqchip/Kconfig", "BCM7120_L2_IRQ")
	add("drivers/power/supply/Kconfig", "CHARGER_MANAGER")
	add("drivers/crypto/chelsio/Kconfig", "CHELSIO_IPSEC_INLINE")

	mediatek := []struct {
		rev      string
		suffixes []string
	}{
		{"MT2712", []string{"", "_BDPSYS", "_IMGSYS", "_JPGDECSYS", "_MFGCFG", "_MMSYS", "_VDECSYS", "_VENCSYS"}},
		{"MT6765", []string{"_AUDIOSYS", "_CAMSYS", "_GCESYS", "_MMSYS", "_IMGSYS", "_VCODECSYS", "_MFGSYS",
			"_MIPI0ASYS", "_MIPI0BSYS", "_MIPI1ASYS", "_MIPI1BSYS", "_MIPI2ASYS", "_MIPI2BSYS"}},
		{"MT6779", []string{"", "_AUDSYS", "_CAMSYS", "_IMGSYS", "_IPESYS", "_MFGCFG", "_MMSYS", "_VDECSYS", "_VENCSYS"}},
		{"MT6797", []string{"_MMSYS", "_IMGSYS", "_VDECSYS", "_VENCSYS"}},
		{"MT7622", []string{"", "_ETHSYS", "_HIFSYS", "_AUDSYS"}},
		{"MT7986", []string{"", "_ETHSYS"}},
		{"MT8167", []string{"", "_AUDSYS", "_IMGSYS", "_MFGCFG", "_MMSYS", "_VDECSYS"}},
		{"MT8173", []string{"", "_MMSYS"}},
		{"MT8183", []string{"", "_AUDIOSYS", "_CAMSYS", "_IMGSYS", "_IPU_CORE0", "_IPU_CORE1",
			"_IPU_ADL", "_IPU_CONN", "_MFGCFG", "_MMSYS", "_VDECSYS", "_VENCSYS"}},
		{"MT8186", []string{""}},
		{"MT8192", []string{"", "_AUDSYS", "_CAMSYS", "_IMGSYS", "_IMP_IIC_WRAP", "_IPESYS", "_MDPSYS",
			"_MFGCFG", "_MMSYS", "_MSDC", "_SCP_ADSP", "_VDECSYS", "_VENCSYS"}},
		{"MT8516", []string{"", "_AUDSYS"}},
	}
	for _, mt := range mediatek {
		add("drivers/clk/mediatek/Kconfig", suffixed("COMMON_CLK_"+mt.rev, mt.suffixes...)...)
	}

	add("drivers/hwtracing/coresight/Kconfig", suffixed("CORESIGHT", "", "_LINKS_AND_SINKS",
		"_LINK_AND_SINK_TMC", "_CATU", "_SINK_TPIU", "_SINK_ETBV10", "_SOURCE_ETM3X",
		"_SOURCE_ETM4X", "_STM")...)
	add("drivers/cpufreq/Kconfig", "CPUFREQ_DT_PLATDEV")
	add("drivers/platform/chrome/Kconfig", "CROS_EC_PROTO")
	add("lib/crypto/Kconfig", suffixed("CRYPTO_ARCH_HAVE_LIB_", "CHACHA", "CURVE25519", "POLY1305")...)
	add("drivers/net/ethernet/cirrus/Kconfig", "CS89x0_PLATFORM")
	add("lib/Kconfig", "DIMLIB")
	add("drivers/base/test/Kconfig", "DRIVER_PE_KUNIT_TEST")
	add("drivers/gpu/drm/Kconfig", "DRM_CLIENT_SELECTION", "DRM_GEM_CMA_HELPER", "DRM_GEM_SHMEM_HELPER")
	add("drivers/video/fbdev/core/Kconfig", "FB_BACKLIGHT")
	// fs/fscache/Kconfig going away means FSCACHE can no longer be a module
	add("fs/fscache/Kconfig", "FSCACHE")
	add("lib/Kconfig.debug", "TEST_MISC_MINOR")
	add("drivers/gpio/Kconfig", suffixed("GPIO_", "DAVINCI", "MXC", "PL061", "TPS68470")...)
	add("virt/kvm/Kconfig", "HAVE_KVM_IRQ_BYPASS")
	add("drivers/firmware/imx/Kconfig", "IMX_DSP")
	add("drivers/infiniband/hw/hns/Kconfig", "INFINIBAND_HNS_HIP08")
	add("lib/Kconfig.debug", "KPROBES_SANITY_TEST")
	add("drivers/mfd/Kconfig", "MFD_PALMAS")
	add("drivers/iommu/Kconfig", "MTK_IOMMU")
	add("drivers/soc/mediatek/Kconfig", "MTK_MMSYS")
	add("drivers/memory/Kconfig", "MTK_SMI")
	add("net/9p/Kconfig", "NET_9P_USBG")
	add("drivers/net/dsa/realtek/Kconfig", suffixed("NET_DSA_REALTEK_", "MDIO", "SMI")...)
	add("drivers/nvme/common/Kconfig", "NVME_AUTH")
	add("drivers/nvmem/Kconfig", "NVMEM_ZYNQMP")
	add("drivers/pci/controller/dwc/Kconfig", suffixed("PCI_", "DRA7XX", "DRA7XX_EP", "DRA7XX_HOST", "EXYNOS", "MESON")...)
	add("drivers/pci/controller/Kconfig", "PCI_MVEBU")
	add("drivers/pinctrl/Kconfig", "PINCTRL_ROCKCHIP")
	add("drivers/pinctrl/spacemit/Kconfig", "PINCTRL_SPACEMIT_K1")
	add("drivers/power/reset/Kconfig", "POWER_RESET_SC27XX")
	add("drivers/thermal/intel/int340x_thermal/Kconfig", "PROC_THERMAL_MMIO_RAPL")
	add("drivers/pwm/Kconfig", "PWM_CRC")
	add("drivers/mailbox/Kconfig", "QCOM_IPCC")
	add("drivers/soc/qcom/Kconfig", "QCOM_RPMPD", "QCOM_RPMHPD")
	add("drivers/media/radio/Kconfig", "RADIO_ADAPTERS")
	add("lib/math/Kconfig", "RATIONAL")
	add("drivers/reset/Kconfig", "RESET_IMX7", "RESET_MESON")
	add("drivers/net/wireless/realtek/rtw88/Kconfig", "RTW88_8822BE", "RTW88_8822CE")
	add("drivers/tty/serial/Kconfig", "SERIAL_SC16IS7XX_I2C", "SERIAL_SC16IS7XX_SPI", "SERIAL_LANTIQ")
	add("sound/soc/sof/Kconfig", "SND_SOC_SOF_DEBUG_PROBES")
	add("sound/soc/sof/intel/Kconfig", "SND_SOC_SOF_HDA_PROBES")
	add("sound/soc/sprd/Kconfig", "SND_SOC_SPRD_MCDT")
	add("drivers/clk/sunxi-ng/Kconfig", "SUNXI_CCU", "SUN8I_DE2_CCU")
	add("lib/Kconfig.debug", "SYSCTL_KUNIT_TEST")
	add("drivers/memory/tegra/Kconfig", suffixed("TEGRA", "124_EMC", "20_EMC", "30_EMC")...)
	add("drivers/net/ethernet/ti/Kconfig", "TI_CPTS")
	add("drivers/dma/ti/Kconfig", "TI_K3_PSIL")
	add("drivers/soc/ti/Kconfig", "TI_K3_RINGACC")
	add("drivers/dma/ti/Kconfig", "TI_K3_UDMA", "TI_K3_UDMA_GLUE_LAYER")
	add("drivers/irqchip/Kconfig", "TI_SCI_INTA_IRQCHIP", "TI_SCI_INTR_IRQCHIP")
	add("fs/unicode/Kconfig", "UNICODE")
	add("drivers/vfio/Kconfig", "VFIO_VIRQFD")
	add("drivers/iommu/Kconfig", "VIRTIO_IOMMU")
	add("drivers/xen/Kconfig", "XEN_PVCALLS_BACKEND")
	return out
}

// companions are forced along with a compat symbol
var companions = map[string][]string{
	"CS89x0_PLATFORM": {"CONFIG_CS89x0=y"},
}

const (
	ppcMaxOrder8 = "int \"Order of maximal physically contiguous allocations\"\n" +
		"\tdefault \"8\" if PPC64 && PPC_64K_PAGES"
	ubsanFile = "lib/Kconfig.ubsan"
)

// distroAdjustRules keep distribution configs buildable on trees older or
// newer than the distribution kernel; they are applied silently
func distroAdjustRules() []rules.Rule {
	distro := rules.IsDistro()
	list := []rules.Rule{
		// UNIX and INET avoid warnings on shutdown and when setting up lo;
		// the defconfig style configs lack 8a03e56b253e on 5.15
		adjust("alpine-basics", rules.IsDistro("alpine"),
			"CONFIG_UNIX=y", "CONFIG_INET=y", "CONFIG_BPF_UNPRIV_DEFAULT_OFF=y"),
		// The Android drivers are not modular upstream
		adjust("debian-binder", rules.All(rules.IsDistro("debian"), rules.BaseModular("ANDROID_BINDER_IPC")),
			"CONFIG_ANDROID_BINDER_IPC=y"),
		adjust("debian-ashmem", rules.All(rules.IsDistro("debian"), rules.BaseModular("ASHMEM")),
			"CONFIG_ASHMEM=y"),
		adjust("ppc64le-max-order-8",
			rules.All(distro, rules.DistroConfig("ppc64le", "powerpc64le"),
				rules.FileContains("arch/powerpc/Kconfig", ppcMaxOrder8)),
			"CONFIG_ARCH_FORCE_MAX_ORDER=8"),
		adjust("ppc64le-max-order-9",
			rules.All(distro, rules.DistroConfig("ppc64le", "powerpc64le"),
				rules.Not(rules.FileContains("arch/powerpc/Kconfig", ppcMaxOrder8))),
			"CONFIG_ARCH_FORCE_MAX_ORDER=9"),
	}

	for _, c := range moduleCompat {
		options := append([]string{"CONFIG_" + c.symbol + "=y"}, companions[c.symbol]...)
		list = append(list, adjust("builtin-"+c.symbol,
			rules.All(distro, rules.BaseModular(c.symbol), rules.Not(rules.KconfigTristate(c.file, c.symbol))),
			options...))
	}

	list = append(list,
		// MFD_ARIZONA's type is not declared on the line after its name
		adjust("builtin-MFD_ARIZONA",
			rules.All(distro, rules.BaseModular("MFD_ARIZONA"),
				rules.Not(rules.FileContains("drivers/mfd/Makefile", "arizona-objs"))),
			"CONFIG_MFD_ARIZONA=y"),
		adjust("base-small-int",
			rules.All(distro, rules.KconfigType("init/Kconfig", "BASE_SMALL", "int"), rules.BaseState("BASE_SMALL", "n")),
			"CONFIG_BASE_SMALL=0"),
		adjust("base-small-bool",
			rules.All(distro, rules.KconfigType("init/Kconfig", "BASE_SMALL", "bool"), rules.BaseState("BASE_SMALL", "0")),
			"CONFIG_BASE_SMALL=n"),
		adjust("ubsan-integer-wrap",
			rules.All(distro, rules.FileContains(ubsanFile, "config UBSAN_INTEGER_WRAP"),
				rules.Not(rules.BaseSet("UBSAN_SIGNED_WRAP"))),
			"CONFIG_UBSAN_INTEGER_WRAP=n"),
		adjust("ubsan-signed-wrap",
			rules.All(distro, rules.Exists(ubsanFile), rules.Not(rules.FileContains(ubsanFile, "config UBSAN_INTEGER_WRAP")),
				rules.Not(rules.BaseSet("UBSAN_INTEGER_WRAP"))),
			"CONFIG_UBSAN_SIGNED_WRAP=n"),
	)
	return list
}

// commonRules run for every scenario after its own rules
var commonRules = concat(werrorRules, distroPrepRules, distroAdjustRules())

func concat(lists ...[]rules.Rule) []rules.Rule {
	var out []rules.Rule
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
