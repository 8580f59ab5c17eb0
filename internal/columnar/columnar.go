// Package columnar flattens a finished encounter's event stream into a
// fixed-schema parquet file, one file per encounter under
// <config_dir>/data/<session_id>/<NNNN>.parquet, so an external SQL
// engine can query encounters offline.
package columnar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"combatlogd/internal/eventproc"
)

// row is the on-disk schema: the full log-event projection
// plus the derived phase id/name and combat_time_secs columns. Field
// tags follow parquet-go's struct-tag convention for name/type/encoding.
type row struct {
	EncounterID    int64   `parquet:"name=encounter_id, type=INT64"`
	LineNumber     int64   `parquet:"name=line_number, type=INT64"`
	TimestampUnix  int64   `parquet:"name=timestamp_unix_nano, type=INT64"`
	SourceID       int64   `parquet:"name=source_id, type=INT64"`
	TargetID       int64   `parquet:"name=target_id, type=INT64"`
	ActionID       int64   `parquet:"name=action_id, type=INT64"`
	EffectID       int64   `parquet:"name=effect_id, type=INT64"`
	DmgAmount      int64   `parquet:"name=dmg_amount, type=INT64"`
	DmgEffective   int64   `parquet:"name=dmg_effective, type=INT64"`
	DmgAbsorbed    int64   `parquet:"name=dmg_absorbed, type=INT64"`
	HealAmount     int64   `parquet:"name=heal_amount, type=INT64"`
	HealEffective  int64   `parquet:"name=heal_effective, type=INT64"`
	IsCrit         bool    `parquet:"name=is_crit, type=BOOLEAN"`
	PhaseID        string  `parquet:"name=phase_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PhaseName      string  `parquet:"name=phase_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	CombatTimeSecs float64 `parquet:"name=combat_time_secs, type=DOUBLE"`
}

// rowGroupParallelism bounds parquet-go's internal goroutine count for
// the page-building step; one encounter's file is small enough that
// more would only add scheduling overhead.
const rowGroupParallelism = 2

// WritePath returns the destination file for the given session and
// per-session file sequence number, creating its parent directory.
func WritePath(dataDir, sessionID string, fileSeq uint32) (string, error) {
	dir := filepath.Join(dataDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("columnar: create %s: %w", dir, err)
	}
	return filepath.Join(dir, fmt.Sprintf("%04d.parquet", fileSeq)), nil
}

// WriteEncounter flattens rows into a parquet file at path. phaseNames
// resolves a rules.PhaseDefinition.ID to its display Name; ids absent
// from the map (no phase active, or an unrecognized id) write an empty
// phase_name.
func WriteEncounter(path string, rows []eventproc.RowEvent, phaseNames map[string]string) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("columnar: open %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(row), rowGroupParallelism)
	if err != nil {
		return fmt.Errorf("columnar: new writer for %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		out := row{
			EncounterID:    int64(r.EncounterID),
			LineNumber:     int64(r.LineNumber),
			TimestampUnix:  r.Timestamp.UnixNano(),
			SourceID:       r.SourceID,
			TargetID:       r.TargetID,
			ActionID:       r.ActionID,
			EffectID:       r.EffectID,
			DmgAmount:      r.DmgAmount,
			DmgEffective:   r.DmgEffective,
			DmgAbsorbed:    r.DmgAbsorbed,
			HealAmount:     r.HealAmount,
			HealEffective:  r.HealEffective,
			IsCrit:         r.IsCrit,
			PhaseID:        r.PhaseID,
			PhaseName:      phaseNames[r.PhaseID],
			CombatTimeSecs: r.CombatTimeSecs,
		}
		if err := pw.Write(out); err != nil {
			return fmt.Errorf("columnar: write row %d: %w", r.LineNumber, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("columnar: finalize %s: %w", path, err)
	}
	return nil
}
