package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

// exportRecord is the stable export shape. Field names stay fixed so that
// exported files remain parseable across releases.
type exportRecord struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	Title           string  `json:"title,omitempty"`
	FormatSelector  string  `json:"format_selector"`
	DestinationPath string  `json:"destination_path"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	Error           string  `json:"error,omitempty"`
	FileSize        int64   `json:"file_size,omitempty"`
	CreatedAt       string  `json:"created_at"`
	FinishedAt      string  `json:"finished_at,omitempty"`
}

func toExportRecord(task model.Task) exportRecord {
	return exportRecord{
		ID:              task.ID,
		URL:             task.URL,
		Title:           task.Title,
		FormatSelector:  task.FormatSelector,
		DestinationPath: task.DestinationPath,
		Status:          task.Status.String(),
		Progress:        task.Progress,
		Error:           task.Err,
		FileSize:        task.FileSize,
		CreatedAt:       formatExportTime(task.CreatedAt),
		FinishedAt:      formatExportTime(task.FinishedAt),
	}
}

func formatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ExportJSON writes the records matching f to w as an indented JSON array
func (s *Store) ExportJSON(w io.Writer, f Filter) error {
	tasks, err := s.Query(f)
	if err != nil {
		return err
	}

	records := make([]exportRecord, 0, len(tasks))
	for _, task := range tasks {
		records = append(records, toExportRecord(task))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("export history as json: %w", err)
	}
	return nil
}

// csvHeader is the first row of every CSV export
var csvHeader = []string{
	"id", "url", "title", "format_selector", "destination_path",
	"status", "progress", "error", "file_size", "created_at", "finished_at",
}

// ExportCSV writes the records matching f to w as CSV with a header row
func (s *Store) ExportCSV(w io.Writer, f Filter) error {
	tasks, err := s.Query(f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export history as csv: %w", err)
	}

	for _, task := range tasks {
		rec := toExportRecord(task)
		row := []string{
			rec.ID,
			rec.URL,
			rec.Title,
			rec.FormatSelector,
			rec.DestinationPath,
			rec.Status,
			strconv.FormatFloat(rec.Progress, 'f', 4, 64),
			rec.Error,
			strconv.FormatInt(rec.FileSize, 10),
			rec.CreatedAt,
			rec.FinishedAt,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export history as csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export history as csv: %w", err)
	}
	return nil
}
