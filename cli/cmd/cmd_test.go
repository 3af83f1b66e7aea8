package cmd

import (
	"errors"
	"testing"

	"github.com/justapithecus/freetracer/adapter"
	"github.com/justapithecus/freetracer/adapter/redis"
	"github.com/justapithecus/freetracer/adapter/webhook"
	"github.com/justapithecus/freetracer/cli/config"
	"github.com/justapithecus/freetracer/flasher"
	"github.com/justapithecus/freetracer/metrics"
	"github.com/justapithecus/freetracer/types"
)

func TestDescribeImage(t *testing.T) {
	image := &types.ImageDescriptor{
		Path:      "/images/distro.iso",
		Size:      4096,
		Developer: "EXAMPLE CORP",
		Platform:  0xEF,
		BootEntries: []types.BootCatalogEntry{
			{BootIndicator: 0x88, BootMedia: 0, SectorCount: 4, LoadRBA: 16},
		},
	}

	resp := describeImage(image)
	if resp.Platform != "efi" {
		t.Errorf("Platform = %q, want efi", resp.Platform)
	}
	if !resp.Bootable {
		t.Error("Bootable = false")
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("Entries = %d, want 1", len(resp.Entries))
	}
	e := resp.Entries[0]
	if !e.Bootable || e.Media != "no_emulation" || e.SectorCount != 4 || e.LoadRBA != 16 {
		t.Errorf("entry = %+v", e)
	}
}

func TestBootMediaName(t *testing.T) {
	tests := []struct {
		media byte
		want  string
	}{
		{0, "no_emulation"},
		{2, "floppy_1.44m"},
		{4, "hard_disk"},
		{9, "unknown"},
	}
	for _, tt := range tests {
		if got := bootMediaName(tt.media); got != tt.want {
			t.Errorf("bootMediaName(%d) = %q, want %q", tt.media, got, tt.want)
		}
	}
}

func TestPlatformName(t *testing.T) {
	tests := []struct {
		platform byte
		want     string
	}{
		{0x00, "80x86"},
		{0x01, "powerpc"},
		{0x02, "mac"},
		{0xEF, "efi"},
		{0x42, "unknown"},
	}
	for _, tt := range tests {
		if got := platformName(tt.platform); got != tt.want {
			t.Errorf("platformName(%#x) = %q, want %q", tt.platform, got, tt.want)
		}
	}
}

func TestFlashExitCode(t *testing.T) {
	writeErr := &flasher.StageError{Stage: flasher.StageWriting, Code: types.CodeFailedToWrite}
	if got := flashExitCode(writeErr); got != exitWriteFailure {
		t.Errorf("write failure exit = %d, want %d", got, exitWriteFailure)
	}

	parseErr := &flasher.StageError{Stage: flasher.StageInit, Err: errors.New("no boot record")}
	if got := flashExitCode(parseErr); got != exitRefused {
		t.Errorf("parse failure exit = %d, want %d", got, exitRefused)
	}

	if got := flashExitCode(errors.New("plain")); got != exitRefused {
		t.Errorf("plain error exit = %d, want %d", got, exitRefused)
	}
}

// The flash summary carries the session's retry and install counters.
func TestFlashResult_AbsorbsCounters(t *testing.T) {
	collector := metrics.NewCollector("cli-test")
	collector.IncOpRetry()
	collector.IncHelperInstall()
	collector.IncHelperInstall()

	var result FlashResult
	result.absorb(collector.Snapshot())

	if result.Retries != 1 {
		t.Errorf("Retries = %d, want 1", result.Retries)
	}
	if result.HelperInstalls != 2 {
		t.Errorf("HelperInstalls = %d, want 2", result.HelperInstalls)
	}
}

func TestNewSink_TypeSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AdapterConfig
		want    any
		wantErr bool
	}{
		{name: "empty type", cfg: config.AdapterConfig{}, want: adapter.Discard{}},
		{name: "none", cfg: config.AdapterConfig{Type: "none"}, want: adapter.Discard{}},
		{
			name: "webhook",
			cfg:  config.AdapterConfig{Type: "webhook", URL: "http://localhost:8080/hook"},
			want: (*webhook.Adapter)(nil),
		},
		{
			name: "redis",
			cfg:  config.AdapterConfig{Type: "redis", URL: "redis://localhost:6379"},
			want: (*redis.Adapter)(nil),
		},
		{name: "unknown", cfg: config.AdapterConfig{Type: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := newSink(&config.Config{Adapter: tt.cfg})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newSink: %v", err)
			}
			switch tt.want.(type) {
			case adapter.Discard:
				if _, ok := sink.(adapter.Discard); !ok {
					t.Errorf("sink = %T, want adapter.Discard", sink)
				}
			case *webhook.Adapter:
				if _, ok := sink.(*webhook.Adapter); !ok {
					t.Errorf("sink = %T, want *webhook.Adapter", sink)
				}
			case *redis.Adapter:
				if _, ok := sink.(*redis.Adapter); !ok {
					t.Errorf("sink = %T, want *redis.Adapter", sink)
				}
			}
		})
	}
}
