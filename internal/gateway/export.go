package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sparkd-app/dategame/internal/game"
)

// ExportResults appends a finished session's outcome to a text file.
func ExportResults(res *SessionResults, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	rows := make([]*PlayerResult, 0, len(res.ByUser))
	for _, r := range res.ByUser {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("DateGame Results - Session %s\n", res.SessionID))
	sb.WriteString(fmt.Sprintf("Stage: %s\n", game.StageName(res.Level)))
	sb.WriteString(fmt.Sprintf("Finished: %s\n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("- %s: %d points, answers [%s]\n", r.UserID, r.Score, strings.Join(r.Answers, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Shared answers: %d\n", res.Shared))
	sb.WriteString(fmt.Sprintf("Compatibility: %d%%\n\n", res.Compat))

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
