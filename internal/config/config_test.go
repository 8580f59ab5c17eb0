package config

import (
	"fmt"
	"path/filepath"
	"testing"

	"combatlogd/internal/overlaydata"
)

func TestParseHotkey(t *testing.T) {
	cases := []struct {
		in      string
		wantOK  bool
		wantKey string
		wantMod int
	}{
		{"", true, "", 0},
		{"O", true, "O", 0},
		{"Ctrl+Shift+O", true, "O", 2},
		{"F5", true, "F5", 0},
		{"Ctrl+Ctrl+O", false, "", 0},
		{"Shift+", false, "", 0},
		{"Meta+O", false, "", 0},
	}
	for _, tc := range cases {
		mods, key, ok := ParseHotkey(tc.in)
		if ok != tc.wantOK {
			t.Errorf("ParseHotkey(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if key != tc.wantKey {
			t.Errorf("ParseHotkey(%q) key = %q, want %q", tc.in, key, tc.wantKey)
		}
		if len(mods) != tc.wantMod {
			t.Errorf("ParseHotkey(%q) modifiers = %v, want %d of them", tc.in, mods, tc.wantMod)
		}
	}
}

func TestAddProfileLimitsAndDuplicates(t *testing.T) {
	cfg := Default()
	for i := 0; i < MaxProfiles; i++ {
		if err := cfg.AddProfile(Profile{Name: fmt.Sprintf("profile-%d", i)}); err != nil {
			t.Fatalf("AddProfile %d: %v", i, err)
		}
	}
	if err := cfg.AddProfile(Profile{Name: "one-too-many"}); err == nil {
		t.Fatal("expected error exceeding MaxProfiles")
	}

	cfg2 := Default()
	if err := cfg2.AddProfile(Profile{Name: "raid"}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if err := cfg2.AddProfile(Profile{Name: "raid"}); err == nil {
		t.Fatal("expected error for duplicate profile name")
	}
}

func TestActivateProfileSwapsOverlaysAndIsolatesCopies(t *testing.T) {
	cfg := Default()
	custom := map[overlaydata.Kind]OverlaySettings{
		overlaydata.KindDPS: {Enabled: false, Visible: false, Opacity: 0.5, FontScale: 1.2},
	}
	if err := cfg.AddProfile(Profile{Name: "minimal", Overlays: custom}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}

	if err := cfg.ActivateProfile("minimal"); err != nil {
		t.Fatalf("ActivateProfile: %v", err)
	}
	if cfg.ActiveProfileName != "minimal" {
		t.Fatalf("ActiveProfileName = %q, want minimal", cfg.ActiveProfileName)
	}
	if cfg.Overlays[overlaydata.KindDPS].Opacity != 0.5 {
		t.Fatalf("Overlays[DPS].Opacity = %v, want 0.5", cfg.Overlays[overlaydata.KindDPS].Opacity)
	}

	// Mutating the live map must not alter the stored profile's copy.
	live := cfg.Overlays[overlaydata.KindDPS]
	live.Opacity = 0.9
	cfg.Overlays[overlaydata.KindDPS] = live
	if cfg.Profiles[0].Overlays[overlaydata.KindDPS].Opacity != 0.5 {
		t.Fatal("ActivateProfile must deep-copy the profile's overlay map")
	}

	if err := cfg.ActivateProfile("does-not-exist"); err == nil {
		t.Fatal("expected error activating unknown profile")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.LogDirectory = "/var/logs/combat"
	cfg.Hotkeys.ToggleVisibility = "Ctrl+Shift+O"
	cfg.Parsely = ParselyCredentials{Username: "raider", Guild: "Nerd Herd"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.LogDirectory != cfg.LogDirectory {
		t.Fatalf("LogDirectory = %q, want %q", loaded.LogDirectory, cfg.LogDirectory)
	}
	if loaded.Hotkeys.ToggleVisibility != cfg.Hotkeys.ToggleVisibility {
		t.Fatalf("Hotkeys mismatch after round trip")
	}
	if loaded.Parsely != cfg.Parsely {
		t.Fatalf("Parsely credentials mismatch after round trip: %+v vs %+v", loaded.Parsely, cfg.Parsely)
	}
	if len(loaded.Overlays) != len(cfg.Overlays) {
		t.Fatalf("Overlays length mismatch: %d vs %d", len(loaded.Overlays), len(cfg.Overlays))
	}
}

func TestStoreUpdatePersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	store := NewStore(path, Default())

	if err := store.Update(func(c *AppConfig) { c.LogDirectory = "/tmp/logs" }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	onDisk, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if onDisk.LogDirectory != "/tmp/logs" {
		t.Fatalf("persisted LogDirectory = %q, want /tmp/logs", onDisk.LogDirectory)
	}
	if store.Snapshot().LogDirectory != "/tmp/logs" {
		t.Fatal("Snapshot should reflect the update immediately")
	}
}

func TestStoreUpdateSurfacesSaveFailureWithoutPublisher(t *testing.T) {
	// A directory that cannot hold a config.json (parent path component is
	// itself a file) forces Save to fail; Update must still return the
	// error rather than panicking when no Publisher is attached.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-directory")
	if err := Save(blocker, Default()); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	path := filepath.Join(blocker, "config.json")
	store := NewStore(path, Default())

	if err := store.Update(func(c *AppConfig) { c.LogDirectory = "/tmp/logs" }); err == nil {
		t.Fatal("expected Update to surface the save failure")
	}
}
