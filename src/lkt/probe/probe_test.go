package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitswalk/lkt/src/lkt/executor"
)

func TestParseToolCode(t *testing.T) {
	tests := []struct {
		in      string
		want    ToolCode
		wantErr bool
	}{
		{"12.0.1", 120001, false},
		{"11.0.0", 110000, false},
		{"2.39", 23900, false},
		{"2.39-3.fc38", 23900, false},
		{"2.39.50.20221024", 23950, false},
		{"8.2.1", 80201, false},
		{"17", 0, true},
		{"a.b.c", 0, true},
		{"1.100.0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseToolCode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToolCode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseToolCode(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLinuxCode(t *testing.T) {
	tests := []struct {
		in   string
		want LinuxCode
	}{
		{"5.10.0", 510000},
		{"5.9.0", 509000},
		{"6.7.0-rc3", 607000},
		{"4.19.325", 419325},
		{"6.1", 601000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLinuxCode(tt.in)
			if err != nil {
				t.Fatalf("ParseLinuxCode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLinuxCode(%q) = %d, want %d", tt.in, got, tt.want)
			}
			if got.String() != NewLinuxCode(got.Major(), got.Minor(), got.Patch()).String() {
				t.Errorf("String() round trip mismatch for %q", tt.in)
			}
		})
	}
}

func TestToolCodeNoCollisions(t *testing.T) {
	seen := make(map[ToolCode]string)
	for major := 0; major < 30; major++ {
		for minor := 0; minor < 100; minor++ {
			for patch := 0; patch < 100; patch += 7 {
				c := NewToolCode(major, minor, patch)
				v := c.String()
				if prev, ok := seen[c]; ok {
					t.Fatalf("%s and %s both encode to %d", prev, v, c)
				}
				seen[c] = v
				if c.Major() != major || c.Minor() != minor || c.Patch() != patch {
					t.Fatalf("%d does not decode back to %d.%d.%d", c, major, minor, patch)
				}
			}
		}
	}
}

func TestToolCodeOrdering(t *testing.T) {
	if !(NewToolCode(12, 0, 1) > NewToolCode(12, 0, 0)) {
		t.Error("12.0.1 should sort after 12.0.0")
	}
	if !(NewToolCode(13, 0, 0) > NewToolCode(12, 99, 99)) {
		t.Error("13.0.0 should sort after 12.99.99")
	}
	if !(NewLinuxCode(5, 10, 0) > NewLinuxCode(5, 9, 999)) {
		t.Error("5.10.0 should sort after 5.9.999")
	}
}

func TestLLVM(t *testing.T) {
	f := executor.NewFake().AddTool("clang")
	f.On("clang -E -P -x c -", executor.Result{Output: []byte("11 1 0\n")})

	got, err := LLVM(context.Background(), f, "")
	if err != nil {
		t.Fatalf("LLVM() error = %v", err)
	}
	if got != 110100 {
		t.Errorf("LLVM() = %d, want 110100", got)
	}
}

func TestLLVM_Missing(t *testing.T) {
	got, err := LLVM(context.Background(), executor.NewFake(), "clang")
	if err != nil || got != 0 {
		t.Errorf("LLVM() = %d, %v; want 0, nil", got, err)
	}
}

func TestBinutils(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   ToolCode
	}{
		{"upstream snapshot", "GNU assembler (GNU Binutils) 2.39.50.20221024\nCopyright", 23950},
		{"fedora", "GNU assembler version 2.39-3.fc38\n", 23900},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := executor.NewFake().AddTool("s390x-linux-gnu-as")
			f.On("s390x-linux-gnu-as --version", executor.Result{Output: []byte(tt.output)})
			got, err := Binutils(context.Background(), f, "s390x-linux-gnu-as")
			if err != nil {
				t.Fatalf("Binutils() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Binutils() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQEMU(t *testing.T) {
	f := executor.NewFake().AddTool("qemu-system-s390x")
	f.On("qemu-system-s390x --version", executor.Result{
		Output: []byte("QEMU emulator version 5.2.0 (Debian 1:5.2+dfsg-11)\nCopyright"),
	})

	got, err := QEMU(context.Background(), f, "s390x")
	if err != nil {
		t.Fatalf("QEMU() error = %v", err)
	}
	if got != 50200 {
		t.Errorf("QEMU() = %d, want 50200", got)
	}

	if got, _ := QEMU(context.Background(), f, "loongarch64"); got != 0 {
		t.Errorf("QEMU() for a missing binary = %d, want 0", got)
	}
}

func TestLinux(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte("VERSION = 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f := executor.NewFake().On("make -C "+dir+" -s kernelversion", executor.Result{Output: []byte("5.10.0-rc1\n")})

	got, err := Linux(context.Background(), f, dir)
	if err != nil {
		t.Fatalf("Linux() error = %v", err)
	}
	if got != 510000 {
		t.Errorf("Linux() = %d, want 510000", got)
	}
}

func TestLinux_NotKernelTree(t *testing.T) {
	if _, err := Linux(context.Background(), executor.NewFake(), t.TempDir()); err == nil {
		t.Error("expected an error for a folder without a Makefile")
	}
}

func TestMinTool_NoScript(t *testing.T) {
	got, err := MinTool(context.Background(), executor.NewFake(), t.TempDir(), "s390", "llvm")
	if err != nil || got != 0 {
		t.Errorf("MinTool() = %d, %v; want 0, nil", got, err)
	}
}

func TestClangSupportsTarget(t *testing.T) {
	f := executor.NewFake().On("clang --target=hexagon-linux-musl", executor.Result{ExitCode: 1})

	if ClangSupportsTarget(context.Background(), f, "hexagon-linux-musl") {
		t.Error("hexagon should be unsupported")
	}
	if !ClangSupportsTarget(context.Background(), f, "x86_64-linux-gnu") {
		t.Error("x86_64 should be supported")
	}
}
