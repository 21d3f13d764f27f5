package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

func TestApplyFlags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "static only",
			args: []string{"--static-only", "--first-n", "7"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Run.Mode != models.ModeStatic || cfg.Run.FirstN != 7 {
					t.Errorf("mode = %v first-n = %d", cfg.Run.Mode, cfg.Run.FirstN)
				}
			},
		},
		{
			name: "dynamic always",
			args: []string{"--dynamic", "always", "--max-sessions", "2", "--run-timeout", "90s"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Run.Mode != models.ModeDynamicAlways {
					t.Errorf("mode = %v, want always", cfg.Run.Mode)
				}
				if cfg.Browser.MaxSessions != 2 || cfg.Run.RunTimeout != 90*time.Second {
					t.Errorf("sessions = %d timeout = %v", cfg.Browser.MaxSessions, cfg.Run.RunTimeout)
				}
			},
		},
		{
			name: "outputs",
			args: []string{"-o", "out", "--snapshots", "--webhook-url", "https://hooks.example/x"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Output.Dir != "out" || !cfg.Output.Snapshots || cfg.Webhook.URL != "https://hooks.example/x" {
					t.Errorf("output = %+v webhook = %+v", cfg.Output, cfg.Webhook)
				}
			},
		},
		{name: "static mode through --dynamic", args: []string{"--dynamic", "static"}, wantErr: true},
		{name: "unknown mode", args: []string{"--dynamic", "sometimes"}, wantErr: true},
		{name: "conflicting modes", args: []string{"--static-only", "--dynamic", "always"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := NewRunCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags: %v", err)
			}
			cfg := config.Load()
			err := applyFlags(cmd, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("applyFlags: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestApplyFlags_UnsetFlagsKeepDefaults(t *testing.T) {
	t.Parallel()
	cmd := NewRunCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatal(err)
	}
	cfg := config.Load()
	want := *cfg
	if err := applyFlags(cmd, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Run != want.Run || cfg.Output != want.Output {
		t.Errorf("unset flags changed the config: %+v", cfg.Run)
	}
}

func TestHistoryDBFlagWithoutValue(t *testing.T) {
	t.Parallel()
	cmd := NewRunCmd()
	if err := cmd.ParseFlags([]string{"--history-db"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Load()
	if err := applyFlags(cmd, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Output.HistoryDB != config.XDGDataDir() {
		t.Errorf("history db = %q, want %q", cfg.Output.HistoryDB, config.XDGDataDir())
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), getVersion()) {
		t.Errorf("version output = %q", out.String())
	}
}
