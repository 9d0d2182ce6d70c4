package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{61 * time.Second, "1m 1s"},
		{time.Hour, "1h 0s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second + 900*time.Millisecond, "1d 2h 3m 4s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResultLines(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		wantLine string
		wantBoot string
	}{
		{
			name:     "successful with boot",
			result:   Result{Name: "x86_64 defconfig", Build: Successful, Duration: 75 * time.Second, Boot: Successful},
			wantLine: "x86_64 defconfig successful in 1m 15s",
			wantBoot: "x86_64 defconfig qemu boot successful",
		},
		{
			name:     "skipped",
			result:   Skip("i386", "i386 kernels", "missing 158807de5822"),
			wantLine: "i386 kernels skipped due to missing 158807de5822",
		},
		{
			name:     "boot skipped with reason",
			result:   Result{Name: "arm64 defconfig", Build: Successful, Boot: Skipped, BootReason: "missing qemu-system-aarch64"},
			wantLine: "arm64 defconfig successful in 0s",
			wantBoot: "arm64 defconfig qemu boot skipped due to missing qemu-system-aarch64",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Line(); got != tt.wantLine {
				t.Errorf("Line() = %q, want %q", got, tt.wantLine)
			}
			if got := tt.result.BootLine(); got != tt.wantBoot {
				t.Errorf("BootLine() = %q, want %q", got, tt.wantBoot)
			}
		})
	}
}

func TestAddCategorizes(t *testing.T) {
	dir := t.TempDir()
	source := "/src/linux"
	logPath := filepath.Join(dir, "x86_64-allmodconfig.log")
	buildLog := strings.Join([]string{
		"make -skj8 -C /src/linux allmodconfig all",
		"  CC      init/main.o",
		"/src/linux/drivers/foo.c:10:2: error: use of undeclared identifier 'bar'",
		"ld.lld: error: undefined symbol: baz",
		"",
	}, "\n")
	if err := os.WriteFile(logPath, []byte(buildLog), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(source, dir, time.Now())
	err := r.Add(
		Result{Name: "x86_64 defconfig", Build: Successful, Boot: Failed},
		Result{Name: "x86_64 allmodconfig", Build: Failed, Log: logPath},
		Skip("x86_64", "x86_64 CFI configs", "LLVM < 16.0.0"),
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(r.Good) != 1 || len(r.Bad) != 2 || len(r.Skip) != 1 {
		t.Fatalf("got good=%d bad=%d skip=%d", len(r.Good), len(r.Bad), len(r.Skip))
	}
	if !r.HasFailures() {
		t.Error("expected failures")
	}

	failed := r.Bad[1]
	if !strings.Contains(failed, "drivers/foo.c:10:2: error:") {
		t.Errorf("excerpt missing or source prefix not stripped: %q", failed)
	}
	if strings.Contains(failed, "/src/linux/") {
		t.Errorf("source prefix not stripped: %q", failed)
	}
	if strings.Contains(failed, "CC      init/main.o") {
		t.Errorf("non-diagnostic line in excerpt: %q", failed)
	}
	if got := r.Results()[1].Excerpt; len(got) != 2 {
		t.Errorf("Excerpt = %v, want 2 lines", got)
	}
}

func TestAddRejectsUnknownStatus(t *testing.T) {
	r := New("/src", t.TempDir(), time.Now())
	if err := r.Add(Result{Name: "x", Build: "exploded"}); err == nil {
		t.Error("expected error for unknown build status")
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := New("/src/linux", dir, start)
	r.Env = []EnvItem{{"clang version", "clang version 17.0.6"}, {"PATH", "/usr/bin"}}
	if err := r.Add(
		Result{Name: "arm64 defconfig", Build: Successful, Duration: 10 * time.Second},
		Result{Name: "arm64 allnoconfig", Build: Successful, Duration: 5 * time.Second},
		Skip("arm64", "arm64 kernels", "missing clang target"),
	); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := r.Write(&out, start.Add(90*time.Second)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if !strings.Contains(out.String(), "== List of successful tests ==") {
		t.Errorf("missing header in output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "List of failed tests") {
		t.Error("empty category should not be printed")
	}

	info, err := os.ReadFile(filepath.Join(dir, InfoLog))
	if err != nil {
		t.Fatal(err)
	}
	wantInfo := "clang version: clang version 17.0.6\nPATH: /usr/bin\n\nTotal script duration: 1m 30s\n"
	if string(info) != wantInfo {
		t.Errorf("info.log = %q, want %q", info, wantInfo)
	}

	success, err := os.ReadFile(filepath.Join(dir, SuccessLog))
	if err != nil {
		t.Fatal(err)
	}
	wantSuccess := "arm64 defconfig successful in 10s\n\narm64 allnoconfig successful in 5s\n"
	if string(success) != wantSuccess {
		t.Errorf("success.log = %q, want %q", success, wantSuccess)
	}

	if _, err := os.Stat(filepath.Join(dir, FailedLog)); !os.IsNotExist(err) {
		t.Error("failed.log should not exist without failures")
	}
	if _, err := os.Stat(filepath.Join(dir, SkippedLog)); err != nil {
		t.Errorf("skipped.log missing: %v", err)
	}
}
