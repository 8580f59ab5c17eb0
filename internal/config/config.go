// Package config implements AppConfig: the persisted,
// JSON-encoded settings for the log directory, retention policy,
// per-overlay layout/enablement/appearance, named profiles, hotkeys, and
// parsely upload credentials, resolved to an XDG config directory
// (xdg.ConfigHome joined with the application name) rather than a
// hand-rolled os.UserConfigDir branch. Store wraps AppConfig behind a
// read/write lock.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/adrg/xdg"

	"combatlogd/internal/overlaydata"
	"combatlogd/logging"
	configlog "combatlogd/logging/config"
)

const appDirName = "combatlogd"

// MaxProfiles caps how many named profiles a config may hold.
const MaxProfiles = 12

// OverlaySettings is one overlay's persisted appearance/enablement/
// position, mirroring overlaydata.OverlayConfigUpdate's fields plus a
// fixed position (position updates arrive live via PositionEvent but are
// only durably saved here).
type OverlaySettings struct {
	Enabled      bool    `json:"enabled"`
	Visible      bool    `json:"visible"`
	Opacity      float64 `json:"opacity"`
	FontScale    float64 `json:"fontScale"`
	ClickThrough bool    `json:"clickThrough"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

// Hotkeys names the three global hotkey bindings, each
// an optional plus-separated modifier+key string (e.g. "Ctrl+Shift+O")
// validated by ParseHotkey. A nil/empty string means "unbound".
type Hotkeys struct {
	ToggleVisibility    string `json:"toggleVisibility,omitempty"`
	ToggleMoveMode      string `json:"toggleMoveMode,omitempty"`
	ToggleRearrangeMode string `json:"toggleRearrangeMode,omitempty"`
}

// ParselyCredentials carries the optional upload-service account
// fields.
type ParselyCredentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Guild    string `json:"guild,omitempty"`
}

// Profile is one named, switchable overlay layout: a full snapshot of
// per-kind OverlaySettings a user can save and restore by name,
// independent of the single "live"
// Overlays map that is always what is actually rendered.
type Profile struct {
	Name     string                               `json:"name"`
	Overlays map[overlaydata.Kind]OverlaySettings `json:"overlays"`
}

// AppConfig is the full persisted settings document.
type AppConfig struct {
	LogDirectory         string  `json:"logDirectory"`
	AutoDeleteEmptyFiles bool    `json:"autoDeleteEmptyFiles"`
	LogRetentionDays     int     `json:"logRetentionDays"`
	RulesDir             string  `json:"rulesDir"`
	AudioEnabled         bool    `json:"audioEnabled"`
	MasterVolume         float64 `json:"masterVolume"`

	Overlays map[overlaydata.Kind]OverlaySettings `json:"overlaySettings"`

	Profiles          []Profile `json:"profiles"`
	ActiveProfileName string    `json:"activeProfileName"`

	Hotkeys Hotkeys            `json:"hotkeys"`
	Parsely ParselyCredentials `json:"parsely"`
}

var allOverlayKinds = []overlaydata.Kind{
	overlaydata.KindDPS, overlaydata.KindEDPS, overlaydata.KindBossDPS,
	overlaydata.KindHPS, overlaydata.KindEHPS, overlaydata.KindTPS, overlaydata.KindDTPS,
	overlaydata.KindAbsorption, overlaydata.KindPersonal, overlaydata.KindRaid,
	overlaydata.KindBossHealth, overlaydata.KindTimers, overlaydata.KindEffects,
	overlaydata.KindChallenges, overlaydata.KindAlerts,
}

func defaultOverlays() map[overlaydata.Kind]OverlaySettings {
	overlays := make(map[overlaydata.Kind]OverlaySettings, len(allOverlayKinds))
	for _, kind := range allOverlayKinds {
		overlays[kind] = OverlaySettings{Enabled: true, Visible: true, Opacity: 1, FontScale: 1}
	}
	return overlays
}

// Default returns the baseline configuration used when no persisted
// file exists, or when loading one fails.
func Default() AppConfig {
	return AppConfig{
		LogRetentionDays: 30,
		AudioEnabled:     true,
		MasterVolume:     0.8,
		Overlays:         defaultOverlays(),
	}
}

// hotkeyModifierRe and hotkeyKeyRe match the parts of the plus-separated
// modifier+key grammar:
// zero or more of Ctrl/Shift/Alt (in any order, each at most once),
// then exactly one key name.
var (
	hotkeyModifierRe = regexp.MustCompile(`^(Ctrl|Shift|Alt)$`)
	hotkeyKeyRe      = regexp.MustCompile(`^([A-Z0-9]|F[1-9]|F1[0-2]|Up|Down|Left|Right|Home|End|PageUp|PageDown|Insert|Tab|Enter)$`)
)

// ParseHotkey validates s against the hotkey-string grammar,
// returning the ordered modifier list and key name. An empty string
// parses successfully as "unbound" (no modifiers, no key).
func ParseHotkey(s string) (modifiers []string, key string, ok bool) {
	if s == "" {
		return nil, "", true
	}
	parts := splitPlus(s)
	if len(parts) == 0 {
		return nil, "", false
	}
	seen := make(map[string]bool, 3)
	for _, part := range parts[:len(parts)-1] {
		if !hotkeyModifierRe.MatchString(part) || seen[part] {
			return nil, "", false
		}
		seen[part] = true
		modifiers = append(modifiers, part)
	}
	last := parts[len(parts)-1]
	if !hotkeyKeyRe.MatchString(last) {
		return nil, "", false
	}
	return modifiers, last, true
}

func splitPlus(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '+' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Dir resolves the XDG config directory for this application, creating
// it if necessary.
func Dir() (string, error) {
	dir := filepath.Join(xdg.ConfigHome, appDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create %s: %w", dir, err)
	}
	return dir, nil
}

// Path returns the full path to the persisted config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads and decodes the persisted config. Callers fall back to
// defaults themselves on error; Load never returns
// Default() implicitly so a caller can still log the specific failure.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save encodes cfg as indented JSON and writes it to path.
func Save(path string, cfg AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// AddProfile appends a named profile, rejecting the call once
// MaxProfiles is reached or if the name is
// already taken.
func (c *AppConfig) AddProfile(p Profile) error {
	if len(c.Profiles) >= MaxProfiles {
		return fmt.Errorf("config: profile limit reached (%d)", MaxProfiles)
	}
	for _, existing := range c.Profiles {
		if existing.Name == p.Name {
			return fmt.Errorf("config: profile %q already exists", p.Name)
		}
	}
	c.Profiles = append(c.Profiles, p)
	return nil
}

// ActivateProfile switches the live Overlays map to a copy of the named
// profile's settings and records it as active. It is a no-op error if
// the name is not found; the caller's current Overlays are left intact.
func (c *AppConfig) ActivateProfile(name string) error {
	for _, p := range c.Profiles {
		if p.Name != name {
			continue
		}
		overlays := make(map[overlaydata.Kind]OverlaySettings, len(p.Overlays))
		for k, v := range p.Overlays {
			overlays[k] = v
		}
		c.Overlays = overlays
		c.ActiveProfileName = name
		return nil
	}
	return fmt.Errorf("config: profile %q not found", name)
}

// Store wraps AppConfig behind a read/write lock: queries take the read
// lock and updates rewrite the persisted file under the write lock
//.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  AppConfig
	pub  logging.Publisher
}

// NewStore constructs a Store already holding cfg, persisted at path.
func NewStore(path string, cfg AppConfig) *Store {
	return &Store{path: path, cfg: cfg}
}

// SetPublisher attaches a logging.Publisher that Update will report
// save outcomes to. Passing nil is the
// logging no-op.
func (s *Store) SetPublisher(pub logging.Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub = pub
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update runs fn with the write lock held, then persists the result to
// disk before releasing the lock so readers never observe a config that
// doesn't match what's on disk for longer than the write itself takes.
// A save failure is returned to the caller and
// does not roll back the in-memory mutation fn already applied.
func (s *Store) Update(fn func(*AppConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	if err := Save(s.path, s.cfg); err != nil {
		configlog.SaveFailed(context.Background(), s.pub, configlog.SaveFailedPayload{Path: s.path, Err: err.Error()})
		return err
	}
	configlog.Saved(context.Background(), s.pub, configlog.SavedPayload{Path: s.path})
	return nil
}
