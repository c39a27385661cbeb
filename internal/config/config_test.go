package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/grailctl/internal/protocol"
	"github.com/danmuck/grailctl/internal/protocol/aggregator"
	"github.com/danmuck/grailctl/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func TestFullTemplateLoads(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "grail.toml")
	if err := WriteTemplate(path, "full", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Transport.ConnectAttempts != 3 || cfg.Transport.WriteTimeout != 10*time.Second {
		t.Fatalf("unexpected transport: %+v", cfg.Transport)
	}
	if cfg.Transport.Backoff.InitialDelay != 250*time.Millisecond || cfg.Transport.Backoff.MaxDelay != 5*time.Second {
		t.Fatalf("unexpected backoff: %+v", cfg.Transport.Backoff)
	}
	if cfg.Aggregator.KeepAlive != 30*time.Second || cfg.Aggregator.MaxQueued != 1024 {
		t.Fatalf("unexpected aggregator: %+v", cfg.Aggregator)
	}
	if len(cfg.Aggregator.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(cfg.Aggregator.Rules))
	}
	first := cfg.Aggregator.Rules[0]
	if first.PhyLayer != 1 || first.UpdateInterval != 1000 || len(first.Filters) != 2 {
		t.Fatalf("unexpected first rule: %+v", first)
	}
	if first.Filters[0] != aggregator.NewIDMask(0x2a, 0xFFFFFFFF) {
		t.Fatalf("unexpected hex filter: %+v", first.Filters[0])
	}
	if first.Filters[1] != aggregator.NewIDMask(44, aggregator.DefaultMask) {
		t.Fatalf("missing mask must default: %+v", first.Filters[1])
	}
	if second := cfg.Aggregator.Rules[1]; second.PhyLayer != 3 || len(second.Filters) != 0 {
		t.Fatalf("unexpected second rule: %+v", second)
	}
	if cfg.WorldModel.Origin != "grailctl" || cfg.Status.Listen != "127.0.0.1:7080" {
		t.Fatalf("unexpected world model/status: %+v %+v", cfg.WorldModel, cfg.Status)
	}
}

func TestMinimalTemplateKeepsDefaults(t *testing.T) {
	testlog.Start(t)

	text, err := Template("minimal")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	cfg, err := Decode(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	def := Default()
	if cfg.Transport != def.Transport {
		t.Fatalf("transport defaults changed: %+v", cfg.Transport)
	}
	if cfg.Log.Level != "info" || !cfg.Log.Timestamp {
		t.Fatalf("log defaults changed: %+v", cfg.Log)
	}
	if cfg.Aggregator.MaxQueued != def.Aggregator.MaxQueued || len(cfg.Aggregator.Rules) != 0 {
		t.Fatalf("aggregator defaults changed: %+v", cfg.Aggregator)
	}
	if cfg.Status.Listen != "" {
		t.Fatalf("status server must be off by default, got %q", cfg.Status.Listen)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"empty origin":     "[world_model]\norigin = \"\"\n",
		"bad level":        "[log]\nlevel = \"loud\"\n",
		"zero attempts":    "[transport]\nconnect_attempts = 0\n",
		"negative queue":   "[aggregator]\nmax_queued = -1\n",
		"negative timeout": "[transport]\nread_timeout = \"-1s\"\n",
	}
	for name, text := range cases {
		if _, err := Decode(text); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestDecodeParseErrors(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"bad duration": "[transport]\nconnect_timeout = \"soon\"\n",
		"bad filter":   "[[aggregator.rules]]\nphy = 1\nfilters = [{ id = \"0xZZ\" }]\n",
		"bad toml":     "[aggregator\n",
	}
	for name, text := range cases {
		_, err := Decode(text)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: parse errors are not validation errors: %v", name, err)
		}
	}
}

func TestWideFilterID(t *testing.T) {
	testlog.Start(t)

	cfg, err := Decode("[[aggregator.rules]]\nphy = 2\nfilters = [{ id = \"0x10000000000000001\", mask = \"0xffffffffffffffffffffffffffffffff\" }]\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	f := cfg.Aggregator.Rules[0].Filters[0]
	if f.ID != (protocol.WideID{Hi: 1, Lo: 1}) {
		t.Fatalf("unexpected id: %s", f.ID)
	}
	if f.Mask != (protocol.WideID{Hi: ^uint64(0), Lo: ^uint64(0)}) {
		t.Fatalf("unexpected mask: %s", f.Mask)
	}
}

func TestLogConfigConversion(t *testing.T) {
	lc := LogConfig{Level: "debug", NoColor: true, File: "/tmp/grail.log", MaxBackups: 2}
	out := lc.Logging()
	if out.Level != zerolog.DebugLevel || !out.NoColor || out.Timestamp {
		t.Fatalf("unexpected logging config: %+v", out)
	}
	if out.File.Path != "/tmp/grail.log" || out.File.MaxBackups != 2 {
		t.Fatalf("unexpected file config: %+v", out.File)
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grail.toml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if err := WriteTemplate(path, "minimal", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, "minimal", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := Template("bogus"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
