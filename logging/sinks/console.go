package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"combatlogd/logging"
)

// ANSI severity colors for interactive terminals; warn and error need to
// stand out of the parse/processor stream.
const (
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
)

// ConsoleSink renders one line per event:
//
//	severity type seq=N actor=kind:id targets=... payload={...}
//
// with the category-qualified type leading so a stream of mixed
// subsystems stays scannable.
type ConsoleSink struct {
	logger   *log.Logger
	colorize bool
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	return &ConsoleSink{logger: log.New(w, "", log.LstdFlags), colorize: cfg.Colorize}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	sev := severityLabel(event.Severity)
	if s.colorize {
		switch event.Severity {
		case logging.SeverityWarn:
			sev = ansiYellow + sev + ansiReset
		case logging.SeverityError:
			sev = ansiRed + sev + ansiReset
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s seq=%d", sev, event.Type, event.Seq)
	if actor := entityLabel(event.Actor); actor != "" {
		fmt.Fprintf(&b, " actor=%s", actor)
	}
	if len(event.Targets) > 0 {
		labels := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			labels = append(labels, entityLabel(target))
		}
		fmt.Fprintf(&b, " targets=%s", strings.Join(labels, ","))
	}
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			fmt.Fprintf(&b, " payload=%s", data)
		} else {
			fmt.Fprintf(&b, " payload=%v", event.Payload)
		}
	}
	s.logger.Print(b.String())
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}
