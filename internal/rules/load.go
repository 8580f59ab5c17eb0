package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile parses a hand-authored YAML encounter rule file into a
// RuleSet. YAML (rather than the persisted AppConfig's JSON) is used
// here specifically because these files are hand-authored by content
// maintainers: comments and anchors matter for this file, unlike the
// machine-written app configuration.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	return &rs, nil
}

// ShieldSet converts the loaded shield-effect id list into a lookup set.
func (rs *RuleSet) ShieldSet() map[int64]bool {
	set := make(map[int64]bool, len(rs.ShieldEffects))
	for _, id := range rs.ShieldEffects {
		set[id] = true
	}
	return set
}

// BossClassIDs returns the set of NPC class ids registered as bosses.
func (rs *RuleSet) BossClassIDs() map[int64]BossEntry {
	set := make(map[int64]BossEntry, len(rs.Bosses))
	for _, b := range rs.Bosses {
		set[b.ClassID] = b
	}
	return set
}
