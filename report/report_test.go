package report

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mingyuchen/activity-tracker-go/activity"
)

func sampleActivities() []activity.Activity {
	return []activity.Activity{
		{
			ID:           uuid.New(),
			ActivityDate: "2026-08-30",
			Title:        "Morning run",
			Category:     "exercise",
			StartTime:    "07:00:00",
			EndTime:      "07:45:00",
			Notes:        "easy pace, light rain",
			Mood:         4,
		},
		{
			ID:           uuid.New(),
			ActivityDate: "2026-08-30",
			Title:        "Reading",
			Category:     "leisure",
			StartTime:    "21:00:00",
			EndTime:      "22:00:00",
			Notes:        `finished "The Go Programming Language"`,
			Mood:         5,
		},
	}
}

func TestGenerateWritesCSV(t *testing.T) {
	svc := NewService(t.TempDir(), nil)

	name, err := svc.Generate(sampleActivities())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(name, "Activity_") || !strings.HasSuffix(name, ".csv") {
		t.Fatalf("unexpected report name %q", name)
	}

	f, err := svc.Open(name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d, want 2", len(records))
	}
	if records[0][1] != "Morning run" || records[0][6] != "4" {
		t.Fatalf("unexpected first row: %v", records[0])
	}
	// Quotes in notes must survive the CSV round trip.
	if records[1][5] != `finished "The Go Programming Language"` {
		t.Fatalf("notes mangled: %q", records[1][5])
	}
}

func TestGenerateEmptySelection(t *testing.T) {
	svc := NewService(t.TempDir(), nil)

	name, err := svc.Generate(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	f, err := svc.Open(name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("empty selection produced %d bytes", len(data))
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	svc := NewService(t.TempDir(), nil)

	for _, name := range []string{"", "../etc/passwd", "..", "a/b.csv", ".hidden"} {
		if _, err := svc.Open(name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("name %q: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestOpenMissingFile(t *testing.T) {
	svc := NewService(t.TempDir(), nil)

	if _, err := svc.Open("Activity_19700101000000.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
