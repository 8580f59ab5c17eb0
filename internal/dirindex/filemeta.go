// Package dirindex enumerates and watches a directory of combat log
// files, extracting per-file session metadata (session start time, the
// owning character, and a monotonic per-character-per-day session
// number) without fully parsing the file.
package dirindex

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"combatlogd/internal/istr"
	"combatlogd/internal/logline"
)

// fileNameRe matches combat_YYYY-MM-DD_HH_MM_SS_ffffff.txt.
var fileNameRe = regexp.MustCompile(`^combat_(\d{4})-(\d{2})-(\d{2})_(\d{2})_(\d{2})_(\d{2})_(\d{6})\.txt$`)

// probeLineLimit bounds how many lines FileMeta extraction reads looking
// for a DisciplineChanged line before giving up on naming the file's
// character.
const probeLineLimit = 25

// FileMeta describes one combat log file's identity.
type FileMeta struct {
	Path           string
	SessionStart   time.Time
	CharacterName  string
	// CharacterKnown is false when no DisciplineChanged line was found
	// within the first probeLineLimit lines when the file was indexed.
	// Extraction is not retried when the file later grows.
	CharacterKnown bool
	SessionNumber  int
}

// ParseFileName extracts the session start timestamp from a combat log
// file name. Files that do not match the naming convention are skipped
// by the caller, not treated as an error worth surfacing.
func ParseFileName(name string) (time.Time, bool) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])
	micro, _ := strconv.Atoi(m[7])
	return time.Date(year, time.Month(month), day, hour, minute, sec, micro*1000, time.Local), true
}

// IsCombatLogFile reports whether name matches the combat_*.txt naming
// convention.
func IsCombatLogFile(name string) bool {
	return fileNameRe.MatchString(name)
}

// extractCharacterName probes the first probeLineLimit lines of path for
// a DisciplineChanged action, returning the source entity's name. It
// returns ok=false (not an error) if no such line is found within the
// probe window, which is expected for a file the game has only just
// created.
func extractCharacterName(path string, sessionStart time.Time) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("dirindex: open %s: %w", path, err)
	}
	defer f.Close()

	in := istr.New()
	parser := logline.NewParser(in, sessionStart)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; lineNo <= probeLineLimit && scanner.Scan(); lineNo++ {
		text := scanner.Text()
		ev, err := parser.Parse(uint64(lineNo), text)
		if err != nil {
			continue
		}
		if in.MustResolve(ev.Action.Name) == logline.ActionDisciplineChange {
			return in.MustResolve(ev.Source.Name), true, nil
		}
	}
	return "", false, nil
}

// sessionNumberer assigns a monotonic per-(character, date) session
// number, matching the convention that a character's Nth log file on a
// given calendar day is session N.
type sessionNumberer struct {
	counts map[string]int
}

func newSessionNumberer() *sessionNumberer {
	return &sessionNumberer{counts: make(map[string]int)}
}

func (s *sessionNumberer) next(character string, day time.Time) int {
	key := character + "|" + day.Format("2006-01-02")
	s.counts[key]++
	return s.counts[key]
}

// BuildIndex scans dir for combat log files and returns their metadata,
// ordered by session start time. Files that fail character-name
// extraction are still included with CharacterKnown=false.
func BuildIndex(dir string) ([]FileMeta, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dirindex: read dir %s: %w", dir, err)
	}

	type candidate struct {
		path  string
		start time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		start, ok := ParseFileName(entry.Name())
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, entry.Name()), start: start})
	}

	numberer := newSessionNumberer()
	metas := make([]FileMeta, 0, len(candidates))
	for _, c := range candidates {
		meta := FileMeta{Path: c.path, SessionStart: c.start}
		name, ok, err := extractCharacterName(c.path, c.start)
		if err == nil && ok {
			meta.CharacterName = name
			meta.CharacterKnown = true
			meta.SessionNumber = numberer.next(name, c.start)
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
