// Package report renders activity selections to CSV files on disk and serves
// them back for download.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mingyuchen/activity-tracker-go/activity"
)

// ErrNotFound is returned when the requested report file does not exist or
// the name points outside the report directory.
var ErrNotFound = errors.New("report not found")

// Service writes and reads report files under a single directory.
type Service struct {
	dir string
	log *zap.Logger
	now func() time.Time
}

// NewService returns a Service rooted at dir. The directory is created on
// first use.
func NewService(dir string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{dir: dir, log: log, now: time.Now}
}

// Generate writes the activities as UTF-8 CSV to a timestamped file and
// returns its bare file name.
func (s *Service) Generate(activities []activity.Activity) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := "Activity_" + s.now().Format("20060102150405") + ".csv"
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, a := range activities {
		record := []string{
			a.ActivityDate,
			a.Title,
			a.Category,
			a.StartTime,
			a.EndTime,
			a.Notes,
			strconv.Itoa(int(a.Mood)),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}

	s.log.Info("report generated", zap.String("path", path))
	return name, nil
}

// Open returns the named report for download. Names that escape the report
// directory are rejected as ErrNotFound.
func (s *Service) Open(name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open report: %w", err)
	}
	return f, nil
}
