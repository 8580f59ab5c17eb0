// Package app wires the core subsystems into one running process: the
// persisted config, the logging router and its sinks, the directory
// watcher, the per-file bulk-then-tail reader pipeline, the event
// processor and its signal handlers, the overlay bridge, the IPC
// server, and the background telemetry/audio/checkpoint loops.
// cmd/combatlogd's main.go stays a thin shell that calls app.Run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"combatlogd/internal/audio"
	"combatlogd/internal/checkpoint"
	"combatlogd/internal/classify"
	"combatlogd/internal/columnar"
	"combatlogd/internal/config"
	"combatlogd/internal/dirindex"
	"combatlogd/internal/encounter"
	"combatlogd/internal/eventproc"
	"combatlogd/internal/handlers"
	"combatlogd/internal/ipc"
	"combatlogd/internal/istr"
	"combatlogd/internal/logline"
	"combatlogd/internal/overlay"
	"combatlogd/internal/overlaydata"
	"combatlogd/internal/reader"
	"combatlogd/internal/rules"
	"combatlogd/internal/session"
	"combatlogd/internal/signal"
	"combatlogd/internal/telemetry"
	"combatlogd/logging"
	configlog "combatlogd/logging/config"
	handlerlog "combatlogd/logging/handler"
	"combatlogd/logging/sinks"
)

// Config carries the process-level overrides main.go may supply (mainly
// for tests and for the few things that make sense as flags/env vars
// rather than persisted settings).
type Config struct {
	// ListenAddr is the IPC/overlay HTTP server's bind address.
	ListenAddr     string
	// LogDirOverride, if set, wins over the persisted AppConfig's
	// LogDirectory, useful for pointing at a fixture directory in tests.
	LogDirOverride string
}

func (c Config) listenAddr() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return ":7890"
}

// Run loads configuration, brings up the logging router, watches the
// configured log directory, and processes files until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	fallback := log.New(os.Stderr, "combatlogd: ", log.LstdFlags)

	cfgPath, err := config.Path()
	if err != nil {
		return fmt.Errorf("app: resolve config path: %w", err)
	}

	dataDir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("app: resolve data dir: %w", err)
	}
	dataDir = filepath.Join(dataDir, "data")

	router, err := buildLogRouter(fallback, dataDir)
	if err != nil {
		return fmt.Errorf("app: build logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			fallback.Printf("logging router close failed: %v", cerr)
		}
	}()

	appCfg, err := config.Load(cfgPath)
	if err != nil {
		fallback.Printf("config load failed, falling back to defaults: %v", err)
		configlog.LoadFailed(ctx, router, configlog.LoadFailedPayload{Path: cfgPath, Err: err.Error()})
		appCfg = config.Default()
	}
	store := config.NewStore(cfgPath, appCfg)
	store.SetPublisher(router)

	logDir := cfg.LogDirOverride
	if logDir == "" {
		logDir = store.Snapshot().LogDirectory
	}
	if logDir == "" {
		return errors.New("app: no log directory configured")
	}

	sampler := telemetry.NewSampler(router, 5*time.Second)
	sampler.Start()
	defer sampler.Stop()

	overlayMgr := overlay.NewManager(router)
	ipcServer := ipc.NewServer()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ipcServer.Handle(w, r, func(conn *ipc.Conn) {
			go func() {
				conn.ReadCommands(ctx, func(overlaydata.OverlayCommand) {})
				ipcServer.Forget(conn)
			}()
		})
	})
	httpSrv := &http.Server{Addr: cfg.listenAddr(), Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fallback.Printf("ipc server exited: %v", err)
		}
	}()
	defer httpSrv.Shutdown(context.Background())

	interner := istr.New()

	cp := &Coordinator{
		ctx:            ctx,
		router:         router,
		store:          store,
		interner:       interner,
		overlayMgr:     overlayMgr,
		ipcServer:      ipcServer,
		dataDir:        dataDir,
		checkpointPath: filepath.Join(filepath.Dir(cfgPath), "checkpoint.msgpack"),
		fallback:       fallback,
	}

	events, err := dirindex.Watch(ctx, logDir, router)
	if err != nil {
		return fmt.Errorf("app: watch %s: %w", logDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			overlayMgr.Shutdown(context.Background())
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			cp.handleDirEvent(ev, logDir)
		}
	}
}

func buildLogRouter(fallback *log.Logger, dataDir string) (*logging.Router, error) {
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = []string{"console", "json"}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	logCfg.JSON.FilePath = filepath.Join(dataDir, "events.jsonl")

	jsonSink, err := sinks.NewJSONSink(logCfg.JSON)
	if err != nil {
		return nil, err
	}

	available := map[string]logging.Sink{
		"console": sinks.NewConsoleSink(os.Stdout, logCfg.Console),
		"json":    jsonSink,
	}
	return logging.NewRouter(logCfg, logging.SystemClock{}, fallback, available)
}

// Coordinator holds the state that survives across file switches: the
// shared interner, config store, overlay/IPC fan-out, and the one
// actively-tailed fileSession.
type Coordinator struct {
	ctx            context.Context
	router         *logging.Router
	store          *config.Store
	interner       *istr.Interner
	overlayMgr     *overlay.Manager
	ipcServer      *ipc.Server
	dataDir        string
	checkpointPath string
	fallback       *log.Logger

	mu     sync.Mutex
	active *fileSession
}

type fileSession struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *Coordinator) handleDirEvent(ev dirindex.DirectoryEvent, logDir string) {
	switch ev.Kind {
	case dirindex.EventNewFile:
		c.switchTo(ev.Path)
	case dirindex.EventDirectoryIndexed:
		if ev.Newest != "" {
			c.switchTo(ev.Newest)
		}
	case dirindex.EventFileRemoved:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.active != nil {
			c.active.cancel()
			c.active = nil
		}
	}
}

// switchTo aborts any current tail task and starts a fresh bulk-scan +
// tail pipeline for path.
func (c *Coordinator) switchTo(path string) {
	c.mu.Lock()
	if c.active != nil {
		c.active.cancel()
	}
	sessionCtx, cancel := context.WithCancel(c.ctx)
	fs := &fileSession{cancel: cancel, done: make(chan struct{})}
	c.active = fs
	c.mu.Unlock()

	go func() {
		defer close(fs.done)
		c.runFile(sessionCtx, path)
	}()
}

// runFile performs the bulk catch-up scan, then tails the file until
// sessionCtx is canceled (by the next file switch or process shutdown).
func (c *Coordinator) runFile(ctx context.Context, path string) {
	sessionName := filepath.Base(path)

	startTime, _ := dirindex.ParseFileName(sessionName)
	parser := logline.NewParser(c.interner, startTime)

	cache := session.NewCache()
	startOffset := int64(0)
	if cp, err := checkpoint.Load(c.checkpointPath); err == nil && cp.Path == path {
		cache.RestoreEncounterCounter(cp.EncounterIDCounter)
		cache.Player = cp.Player
		cache.PlayerInitialized = cp.Player.LogID != 0
		startOffset = cp.ByteOffset
	}

	ps := session.NewParsingSession(path)
	ps.Cache = cache

	rulesDir := c.store.Snapshot().RulesDir
	loader, currentRules := newAreaRuleLoader(rulesDir)

	persist := func(sessionID string, summary encounter.Summary, rows []eventproc.RowEvent) {
		seq := uint32(summary.EncounterID)
		out, err := columnar.WritePath(c.dataDir, sessionID, seq)
		if err != nil {
			c.fallback.Printf("columnar: resolve path: %v", err)
			return
		}
		phaseNames := map[string]string{}
		if rs := currentRules(); rs != nil {
			for _, p := range rs.Phases {
				phaseNames[p.ID] = p.Name
			}
		}
		if err := columnar.WriteEncounter(out, rows, phaseNames); err != nil {
			c.fallback.Printf("columnar: write %s: %v", out, err)
		}
	}

	hset := newHandlerSet(currentRules)
	hset.resolve = func(id int64) rules.FilterContext {
		var bosses []rules.BossEntry
		if rs := currentRules(); rs != nil {
			bosses = rs.Bosses
		}
		var localPlayer int64
		if cache.PlayerInitialized {
			localPlayer = cache.Player.LogID
		}
		return eventproc.BuildFilterContext(cache.Current(), bosses, hset.raid, localPlayer, id)
	}
	hset.ensure(c.interner, c.router)

	proc := eventproc.New(c.interner, sessionName, loader, persist, c.router, hset.raid)

	var audioPlayer *audio.Player
	if c.store.Snapshot().AudioEnabled {
		audioPlayer = audio.NewPlayer()
		if err := audioPlayer.Start(); err != nil {
			c.fallback.Printf("audio: start: %v", err)
			audioPlayer = nil
		} else {
			defer audioPlayer.Stop()
		}
	}

	if startOffset == 0 {
		bulk, err := reader.ReadLogFile(ctx, path, parser, c.router)
		if err != nil {
			c.fallback.Printf("reader: bulk scan %s: %v", path, err)
		} else {
			ps.Apply(func(cache *session.Cache) {
				for _, ev := range bulk.Events {
					sigs := proc.Process(ctx, cache, ev)
					c.dispatch(ctx, hset, cache, sigs, audioPlayer)
				}
			})
			startOffset = bulk.FileSize
		}
	}
	ps.SetByteOffset(startOffset)

	checkpointTick := time.NewTicker(30 * time.Second)
	defer checkpointTick.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-checkpointTick.C:
				c.saveCheckpoint(ps, path)
			}
		}
	}()

	timerTick := time.NewTicker(500 * time.Millisecond)
	defer timerTick.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-timerTick.C:
				ps.Apply(func(cache *session.Cache) {
					timers, _, _ := hset.snapshot()
					chained := timers.Tick(now)
					for _, ch := range chained {
						timers.OnSignal(ch, now)
						if ch.Kind == signal.KindTimerAlert && audioPlayer != nil {
							if p, ok := ch.Payload.(signal.TimerAlertPayload); ok {
								if clip := audioFileFor(hset.currentRules(), p.DefinitionID); clip != "" {
									audioPlayer.Play(clip)
								}
							}
						}
					}
					if enc := cache.Current(); enc != nil {
						c.pushOverlays(enc, hset, cache.Player.LogID)
					}
				})
			}
		}
	}()

	onEvent := func(ev logline.CombatEvent) {
		ps.Apply(func(cache *session.Cache) {
			sigs := proc.Process(ctx, cache, ev)
			c.dispatch(ctx, hset, cache, sigs, audioPlayer)
		})
	}

	if err := reader.TailFile(ctx, path, startOffset, parser, onEvent, c.router); err != nil {
		c.fallback.Printf("reader: tail %s: %v", path, err)
	}
	c.saveCheckpoint(ps, path)
}

func (c *Coordinator) saveCheckpoint(ps *session.ParsingSession, path string) {
	ps.View(func(cache *session.Cache) {
		state := checkpoint.State{
			Path:               path,
			ByteOffset:         ps.Offset(),
			EncounterIDCounter: cache.EncounterCounter(),
			Player:             cache.Player,
		}
		if err := checkpoint.Save(c.checkpointPath, state); err != nil {
			c.fallback.Printf("checkpoint: save: %v", err)
		}
	})
}

// handlerSet bundles the four provided signal handlers,
// rebuilt whenever the active area's rule set changes.
type handlerSet struct {
	currentRules func() *rules.RuleSet
	resolve      rules.EntityResolver
	mu           sync.Mutex
	timers       *handlers.TimerManager
	effects      *handlers.EffectTracker
	challenges   *handlers.ChallengeTracker
	raid         *handlers.RaidRegistry
	builtFor     *rules.RuleSet
}

func newHandlerSet(currentRules func() *rules.RuleSet) *handlerSet {
	hs := &handlerSet{currentRules: currentRules, raid: handlers.NewRaidRegistry()}
	return hs
}

func (hs *handlerSet) ensure(interner *istr.Interner, pub logging.Publisher) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	rs := hs.currentRules()
	if rs == hs.builtFor && hs.timers != nil {
		return
	}
	if rs == nil {
		rs = &rules.RuleSet{}
	}
	hs.timers = handlers.NewTimerManager(rs, hs.resolve)
	hs.effects = handlers.NewEffectTracker(
		func(id int64) string { return fmt.Sprintf("%d", id) },
		func(id int64) string { return fmt.Sprintf("%d", id) },
		time.Now(),
	)
	hs.challenges = handlers.NewChallengeTracker(rs)
	hs.builtFor = rs

	ctx := context.Background()
	for _, name := range []string{"TimerManager", "EffectTracker", "ChallengeTracker", "RaidRegistry"} {
		handlerlog.Attached(ctx, pub, handlerlog.AttachedPayload{Name: name})
	}
}

// handlerLatencyBudget is the threshold above which a handler's signal
// processing is reported as slow.
const handlerLatencyBudget = 5 * time.Millisecond

// dispatchSignal runs fn for one (handler, signal) pair, recovering any
// panic so a single misbehaving handler never takes down the pipeline or
// the other handlers, and reporting a
// handler.slow event if fn runs past handlerLatencyBudget.
func dispatchSignal(ctx context.Context, pub logging.Publisher, handlerName string, sig signal.Signal, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			handlerlog.PanicRecovered(ctx, pub, handlerlog.PanicRecoveredPayload{
				Name:       handlerName,
				SignalType: sig.Kind.String(),
				Recovered:  fmt.Sprint(r),
			})
		}
	}()
	start := time.Now()
	fn()
	if elapsed := time.Since(start); elapsed > handlerLatencyBudget {
		handlerlog.Slow(ctx, pub, handlerlog.SlowPayload{
			Name:       handlerName,
			SignalType: sig.Kind.String(),
			DurationMs: elapsed.Milliseconds(),
			BudgetMs:   handlerLatencyBudget.Milliseconds(),
		})
	}
}

// snapshot returns the handler set's three current trackers under its
// lock, so callers never observe a torn state mid-rebuild by ensure.
func (hs *handlerSet) snapshot() (*handlers.TimerManager, *handlers.EffectTracker, *handlers.ChallengeTracker) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.timers, hs.effects, hs.challenges
}

// dispatch fans one event's signals out to every handler, then pushes
// refreshed overlay snapshots.
func (c *Coordinator) dispatch(ctx context.Context, hs *handlerSet, cache *session.Cache, sigs []signal.Signal, audioPlayer *audio.Player) {
	if len(sigs) == 0 {
		return
	}
	hs.ensure(c.interner, c.router)
	timers, effects, challenges := hs.snapshot()

	now := time.Now()
	for _, sig := range sigs {
		var chained []signal.Signal
		dispatchSignal(ctx, c.router, "TimerManager", sig, func() { chained = timers.OnSignal(sig, now) })
		dispatchSignal(ctx, c.router, "EffectTracker", sig, func() { effects.OnSignal(sig) })
		dispatchSignal(ctx, c.router, "ChallengeTracker", sig, func() { challenges.OnSignal(sig) })
		for _, ch := range chained {
			dispatchSignal(ctx, c.router, "TimerManager", ch, func() { timers.OnSignal(ch, now) })
		}
		if sig.Kind == signal.KindTimerAlert && audioPlayer != nil {
			if p, ok := sig.Payload.(signal.TimerAlertPayload); ok {
				if clip := audioFileFor(hs.currentRules(), p.DefinitionID); clip != "" {
					audioPlayer.Play(clip)
				}
			}
		}
	}

	if p := cache.Player; cache.PlayerInitialized {
		hs.raid.SetLocalPlayer(p.LogID)
		hs.raid.NoteMember(p.LogID, p.Name, p.ClassID)
	}

	enc := cache.Current()
	if enc == nil {
		return
	}
	c.pushOverlays(enc, hs, cache.Player.LogID)
}

// meterKinds lists every overlaydata.Kind BuildMeterRows knows how to
// compute from a MetricAccumulator.
var meterKinds = []overlaydata.Kind{
	overlaydata.KindDPS, overlaydata.KindEDPS, overlaydata.KindHPS, overlaydata.KindEHPS,
	overlaydata.KindTPS, overlaydata.KindDTPS, overlaydata.KindAbsorption,
}

func (c *Coordinator) pushOverlays(enc *encounter.Encounter, hs *handlerSet, localPlayer int64) {
	names := func(id int64) string {
		if n := hs.raid.Name(id); n != "" {
			return n
		}
		return fmt.Sprintf("%d", id)
	}
	elapsed := time.Since(enc.EnterCombatTime).Seconds()

	for _, kind := range meterKinds {
		rows := overlay.BuildMeterRows(kind, enc, names, elapsed, localPlayer)
		c.push(kind, overlaydata.OverlayData{Kind: kind, Meter: rows})
	}

	personal := overlay.BuildMeterRows(overlaydata.KindDPS, enc, names, elapsed, localPlayer)
	for _, row := range personal {
		if row.IsLocal {
			c.push(overlaydata.KindPersonal, overlaydata.OverlayData{
				Kind: overlaydata.KindPersonal, Meter: []overlaydata.MeterRow{row},
			})
			break
		}
	}

	_, effects, challenges := hs.snapshot()
	c.push(overlaydata.KindEffects, overlaydata.OverlayData{
		Kind: overlaydata.KindEffects, Effects: effects.Rows(),
	})
	c.push(overlaydata.KindChallenges, overlaydata.OverlayData{
		Kind: overlaydata.KindChallenges, Challenges: challenges.Rows(),
	})

	if boss := overlay.BuildBossHealthRow(enc, names, bossClassSet(hs)); boss != nil {
		c.push(overlaydata.KindBossHealth, overlaydata.OverlayData{
			Kind: overlaydata.KindBossHealth, BossHealth: boss,
		})
	}

	c.push(overlaydata.KindTimers, overlaydata.OverlayData{
		Kind: overlaydata.KindTimers, Timers: buildTimerRows(hs),
	})
}

// push fans data out to both the in-process overlay windows (via
// overlayMgr's bounded per-kind channels) and any connected remote UI
// clients (via ipcServer's websocket broadcast): the two bridges named
// separately in the glue layer, fed from the same snapshot.
func (c *Coordinator) push(kind overlaydata.Kind, data overlaydata.OverlayData) {
	c.overlayMgr.PushData(kind, data)
	c.ipcServer.Broadcast(data)
}

// buildTimerRows flattens the active TimerManager's instances into
// overlaydata rows, resolving each instance's display name and color
// from its definition (TimerInstance itself only carries the id/key).
func buildTimerRows(hs *handlerSet) []overlaydata.TimerRow {
	rs := hs.currentRules()
	timers, _, _ := hs.snapshot()
	now := time.Now()
	var rows []overlaydata.TimerRow
	for _, inst := range timers.Instances() {
		if inst.State != handlers.TimerRunning && inst.State != handlers.TimerAlerting {
			continue
		}
		def := definitionFor(rs, inst.DefinitionID)
		if def == nil {
			continue
		}
		rows = append(rows, overlaydata.TimerRow{
			DefinitionID:  inst.DefinitionID,
			Name:          def.Name,
			Key:           inst.Key,
			Color:         def.Color,
			RemainingSecs: inst.ExpiresAt.Sub(now).Seconds(),
			DurationSecs:  def.DurationSecs,
			Alerting:      inst.State == handlers.TimerAlerting,
		})
	}
	return rows
}

func definitionFor(rs *rules.RuleSet, id string) *rules.TimerDefinition {
	if rs == nil {
		return nil
	}
	for i := range rs.Timers {
		if rs.Timers[i].ID == id {
			return &rs.Timers[i]
		}
	}
	return nil
}

// audioFileFor looks up the AudioFile named by a timer definition, since
// TimerManager keeps its definition lookup private and the signal
// payload only carries the definition id.
func audioFileFor(rs *rules.RuleSet, definitionID string) string {
	if rs == nil {
		return ""
	}
	for _, def := range rs.Timers {
		if def.ID == definitionID && def.AudioFile != nil {
			return *def.AudioFile
		}
	}
	return ""
}

func bossClassSet(hs *handlerSet) map[int64]bool {
	rs := hs.currentRules()
	set := make(map[int64]bool)
	if rs == nil {
		return set
	}
	for classID := range rs.BossClassIDs() {
		set[classID] = true
	}
	return set
}

// newAreaRuleLoader returns an eventproc.AreaRuleLoader that reads
// "<rulesDir>/<areaID>.yaml" lazily on area entry, plus an
// accessor exposing the most recently loaded RuleSet to the handler set
// and overlay push logic, which have no direct line to the processor's
// private state.
func newAreaRuleLoader(rulesDir string) (eventproc.AreaRuleLoader, func() *rules.RuleSet) {
	var mu sync.Mutex
	var current *rules.RuleSet

	loader := func(areaID int64, areaName string) eventproc.AreaRules {
		path := filepath.Join(rulesDir, fmt.Sprintf("%d.yaml", areaID))
		rs, err := rules.LoadFile(path)
		if err != nil {
			mu.Lock()
			current = nil
			mu.Unlock()
			return eventproc.AreaRules{}
		}
		for _, b := range rs.Bosses {
			if b.ContentType == string(classify.ContentPvP) {
				classify.RegisterPvPArea(areaID)
			}
		}
		mu.Lock()
		current = rs
		mu.Unlock()
		return eventproc.AreaRules{RuleSet: rs, BossDefs: rs.Bosses}
	}

	return loader, func() *rules.RuleSet {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
}
