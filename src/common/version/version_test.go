package version

import (
	"strings"
	"testing"
)

func TestRelease(t *testing.T) {
	tests := []struct {
		name    string
		release string
		commit  string
		want    string
	}{
		{"tagged build", "0.4.0", "4f9f297", "v0.4.0-4f9f297"},
		{"tagged build without commit", "0.4.0", Unknown, "v0.4.0"},
		{"dev build", DevRelease, Unknown, "dev"},
		{"dev build with commit", DevRelease, "4f9f297", "dev-4f9f297"},
		{"empty release", "", "4f9f297", "dev-4f9f297"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := New()
			info.ReleaseVersion = tt.release
			info.GitCommit = tt.commit
			if got := info.Release(); got != tt.want {
				t.Errorf("Release() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewIsDev(t *testing.T) {
	info := New()
	if !info.IsDev() {
		t.Error("New() should describe a development build")
	}
	if info.String() != DevVersion {
		t.Errorf("String() = %q, want %q", info.String(), DevVersion)
	}
}

func TestFullAndMapCarrySchema(t *testing.T) {
	info := New()
	info.Schema = 3

	if !strings.Contains(info.Full(), "History:    schema 3") {
		t.Errorf("Full() is missing the schema:\n%s", info.Full())
	}
	m := info.Map()
	if m["history_schema"] != "3" {
		t.Errorf("history_schema = %q, want 3", m["history_schema"])
	}
	if m["release"] != "dev" {
		t.Errorf("release = %q, want dev", m["release"])
	}
}
