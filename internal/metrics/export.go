package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ashureev/fixedness-lab/internal/domain"
)

var csvHeader = []string{
	"session_id", "device_id", "world_id", "variant", "end_reason", "created_at",
	"puzzle_id", "puzzle_name", "outcome", "total_attempts", "conventional_attempts",
	"unconventional_attempts", "hesitation_count", "mean_hesitation_ms", "time_to_solution_ms",
	"session_commands", "solve_rate", "mean_attempts", "fixedness_level",
}

// WriteCSV writes one row per puzzle per summary. A summary with no
// encountered puzzles still gets one row with empty puzzle columns.
func WriteCSV(w io.Writer, summaries []*domain.SessionSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range summaries {
		session := []string{
			s.SessionID, s.DeviceID, s.WorldID, string(s.Variant), s.EndReason,
			s.CreatedAt.UTC().Format(time.RFC3339),
		}
		tail := []string{
			strconv.Itoa(s.TotalCommands),
			formatFloat(s.SolveRate),
			formatFloat(s.MeanAttempts),
			string(s.FixednessLevel),
		}

		if len(s.Puzzles) == 0 {
			row := append(append([]string{}, session...), "", "", "", "", "", "", "", "", "")
			if err := cw.Write(append(row, tail...)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
			continue
		}

		for _, p := range s.Puzzles {
			row := append([]string{}, session...)
			row = append(row,
				p.PuzzleID,
				p.PuzzleName,
				p.Outcome,
				strconv.Itoa(p.TotalAttempts),
				strconv.Itoa(p.ConventionalAttempts),
				strconv.Itoa(p.UnconventionalAttempts),
				strconv.Itoa(p.HesitationCount),
				formatFloat(p.MeanHesitationMs),
				formatOptionalMs(p.TimeToSolutionMs),
			)
			if err := cw.Write(append(row, tail...)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func formatOptionalMs(ms *int64) string {
	if ms == nil {
		return ""
	}
	return strconv.FormatInt(*ms, 10)
}
