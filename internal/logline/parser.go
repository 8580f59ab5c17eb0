package logline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"combatlogd/internal/istr"
)

// ErrorKind tags why a line failed to parse.
type ErrorKind int

const (
	ErrInvalidLineFormat ErrorKind = iota
	ErrInvalidEntity
	ErrInvalidTimestamp
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidLineFormat:
		return "InvalidLineFormat"
	case ErrInvalidEntity:
		return "InvalidEntity"
	case ErrInvalidTimestamp:
		return "InvalidTimestamp"
	default:
		return "Unknown"
	}
}

// ParseError reports why Parse rejected a line. Parse errors are always
// recoverable: the caller skips the line and keeps tailing.
type ParseError struct {
	Kind ErrorKind
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("logline: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("logline: %s", e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	bracketRe = regexp.MustCompile(`\[([^\[\]]*)\]`)

	// @Owner Name#ownerLog/Companion Name {classID}:companionLog|...
	companionRe = regexp.MustCompile(`^@([^#]+)#(-?\d+)/([^{]+)\{(-?\d+)\}:(-?\d+)\|`)
	// @Player Name#logID|...
	playerRe = regexp.MustCompile(`^@([^#]+)#(-?\d+)\|`)
	// Name {classID}:logID|...
	npcRe = regexp.MustCompile(`^([^{]+)\{(-?\d+)\}:(-?\d+)\|`)
	// last (cur/max) group in an entity segment.
	healthRe = regexp.MustCompile(`\((\d+)/(\d+)\)\s*$`)

	timeLayout = "15:04:05.000000"
)

// Parser converts lines into CombatEvent values, interning names through a
// shared Interner. It is constructed once per tailed file because it
// carries that file's session date, used to disambiguate the
// time-of-day-only timestamps each line reports.
type Parser struct {
	interner    *istr.Interner
	sessionDate time.Time
}

// NewParser returns a Parser that resolves each line's time-of-day against
// sessionDate (normally extracted from the log file's name; see
// internal/dirindex).
func NewParser(interner *istr.Interner, sessionDate time.Time) *Parser {
	return &Parser{interner: interner, sessionDate: sessionDate}
}

// Parse converts one line into a CombatEvent. lineNumber is 1-based and
// becomes CombatEvent.LineNumber. A non-nil error is always a *ParseError;
// callers should log it at debug and continue.
func (p *Parser) Parse(lineNumber uint64, line string) (CombatEvent, error) {
	matches := bracketRe.FindAllStringSubmatch(line, -1)
	if len(matches) != 6 && len(matches) != 7 {
		return CombatEvent{}, &ParseError{
			Kind: ErrInvalidLineFormat,
			Line: line,
			Err:  fmt.Errorf("expected 6 or 7 bracketed segments, got %d", len(matches)),
		}
	}

	ts, err := p.parseTimestamp(matches[0][1])
	if err != nil {
		return CombatEvent{}, &ParseError{Kind: ErrInvalidTimestamp, Line: line, Err: err}
	}

	source, err := p.parseEntity(matches[1][1])
	if err != nil {
		return CombatEvent{}, &ParseError{Kind: ErrInvalidEntity, Line: line, Err: err}
	}
	target, err := p.parseEntity(matches[2][1])
	if err != nil {
		return CombatEvent{}, &ParseError{Kind: ErrInvalidEntity, Line: line, Err: err}
	}
	// [=] in the source/target position means "same as the other side of
	// this event"; only target commonly uses it but either may.
	if source.Type == EntitySelfReference {
		source = target
	}
	if target.Type == EntitySelfReference {
		target = source
	}

	action := p.parseAction(matches[3][1])
	effect := p.parseEffect(matches[4][1])
	details := p.parseDetails(matches[5][1])
	if len(matches) == 7 {
		if charges, err := parseChargesSegment(matches[6][1]); err == nil {
			details.Charges = charges
		}
	}

	return CombatEvent{
		LineNumber: lineNumber,
		Timestamp:  ts,
		Source:     source,
		Target:     target,
		Action:     action,
		Effect:     effect,
		Details:    details,
	}, nil
}

func (p *Parser) parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("time segment %q: %w", raw, err)
	}
	return time.Date(
		p.sessionDate.Year(), p.sessionDate.Month(), p.sessionDate.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		p.sessionDate.Location(),
	), nil
}

func (p *Parser) parseEntity(raw string) (Entity, error) {
	switch raw {
	case "=":
		return Entity{Type: EntitySelfReference}, nil
	case "":
		return Entity{Type: EntityEmpty, Name: p.interner.Empty()}, nil
	}

	if m := companionRe.FindStringSubmatch(raw); m != nil {
		classID, _ := strconv.ParseInt(m[4], 10, 64)
		logID, _ := strconv.ParseInt(m[5], 10, 64)
		cur, max := parseTrailingHealth(raw)
		return Entity{
			Name:      p.interner.Intern(strings.TrimSpace(m[3])),
			ClassID:   classID,
			LogID:     logID,
			Type:      EntityCompanion,
			HealthCur: cur,
			HealthMax: max,
		}, nil
	}

	if m := playerRe.FindStringSubmatch(raw); m != nil {
		logID, _ := strconv.ParseInt(m[2], 10, 64)
		cur, max := parseTrailingHealth(raw)
		return Entity{
			Name:      p.interner.Intern(strings.TrimPrefix(strings.TrimSpace(m[1]), "@")),
			LogID:     logID,
			Type:      EntityPlayer,
			HealthCur: cur,
			HealthMax: max,
		}, nil
	}

	if m := npcRe.FindStringSubmatch(raw); m != nil {
		classID, _ := strconv.ParseInt(m[2], 10, 64)
		logID, _ := strconv.ParseInt(m[3], 10, 64)
		cur, max := parseTrailingHealth(raw)
		return Entity{
			Name:      p.interner.Intern(strings.TrimSpace(m[1])),
			ClassID:   classID,
			LogID:     logID,
			Type:      EntityNpc,
			HealthCur: cur,
			HealthMax: max,
		}, nil
	}

	return Entity{}, fmt.Errorf("unrecognized entity form %q", raw)
}

func parseTrailingHealth(raw string) (cur, max int64) {
	m := healthRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0
	}
	cur, _ = strconv.ParseInt(m[1], 10, 64)
	max, _ = strconv.ParseInt(m[2], 10, 64)
	return cur, max
}

// parseAction splits an ability/lifecycle segment shaped "Name:id" (id
// omitted for lifecycle markers that carry no ability id, e.g.
// "EnterCombat:").
func (p *Parser) parseAction(raw string) Action {
	name, idStr, _ := strings.Cut(raw, ":")
	id, _ := strconv.ParseInt(idStr, 10, 64)
	return Action{Name: p.interner.Intern(name), ID: id}
}

// parseEffect splits the colon-delimited 8-field effect segment. An empty
// segment (lines that do not describe a status effect) yields the zero
// EffectInfo.
func (p *Parser) parseEffect(raw string) EffectInfo {
	if raw == "" {
		return EffectInfo{}
	}
	fields := strings.Split(raw, ":")
	for len(fields) < 8 {
		fields = append(fields, "")
	}
	return EffectInfo{
		TypeName:       p.interner.Intern(fields[0]),
		TypeID:         atoi64(fields[1]),
		EffectName:     p.interner.Intern(fields[2]),
		EffectID:       atoi64(fields[3]),
		DifficultyName: p.interner.Intern(fields[4]),
		DifficultyID:   atoi64(fields[5]),
		DisciplineName: p.interner.Intern(fields[6]),
		DisciplineID:   atoi64(fields[7]),
	}
}

// parseDetails parses the comma-separated keyed fragments inside the
// parenthesized details segment. Unknown keys are ignored, matching the
// source format's own tolerance for fields this parser doesn't recognize.
func (p *Parser) parseDetails(raw string) Details {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
	var d Details
	if inner == "" {
		return d
	}
	for _, frag := range strings.Split(inner, ",") {
		key, value, hasValue := strings.Cut(frag, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "dmg":
			d.DmgAmount = atoi64(value)
		case "crit":
			d.IsCrit = !hasValue || value != "0"
		case "reflect":
			d.IsReflect = !hasValue || value != "0"
		case "eff":
			d.DmgEffective = atoi64(value)
		case "dmgtype":
			d.DmgType = p.interner.Intern(value)
			d.DmgTypeID = atoi64(value)
		case "deftype":
			d.DefenseTypeID = atoi64(value)
		case "abs":
			d.DmgAbsorbed = atoi64(value)
		case "threat":
			d.Threat = float32(atof64(value))
		case "heal":
			d.HealAmount = atoi64(value)
		case "heff":
			d.HealEffective = atoi64(value)
		case "ability":
			d.AbilityID = atoi64(value)
		case "spend":
			d.Spend = float32(atof64(value))
		case "charges":
			d.Charges = atoi64(value)
		default:
			// Unknown fragment; ignored by design.
		}
	}
	return d
}

func parseChargesSegment(raw string) (int64, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
	return strconv.ParseInt(strings.TrimSpace(inner), 10, 64)
}

func atoi64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func atof64(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
