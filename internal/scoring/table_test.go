package scoring

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTableAppendAndParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.3_stipa_scores.csv")

	table, err := OpenTable(path)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}

	records := []Record{
		{Name: "rir_1/a.wav", Score: 0.721, Status: Ok},
		{Name: "rir_1/b.wav", Status: Failed, Message: "decoding b.wav: not a valid WAV file"},
		{Name: "rir_2/a.wav", Score: 0.5, Status: Ok},
	}
	for _, r := range records {
		if err := table.Append(r); err != nil {
			t.Fatalf("Append(%s): %v", r.Name, err)
		}
	}
	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ParseTable(path)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("parsed %d records, want %d", len(got), len(records))
	}
	for i, r := range got {
		if r != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, r, records[i])
		}
	}
}

func TestTableRowFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	table, err := OpenTable(path)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}

	if err := table.Append(Record{Name: "rir_1/a.wav", Score: 0.25, Status: Ok}); err != nil {
		t.Fatal(err)
	}
	if err := table.Append(Record{Name: "rir_1/b.wav", Status: Failed, Message: "boom"}); err != nil {
		t.Fatal(err)
	}
	table.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	want := []string{"rir_1/a.wav,0.25", "rir_1/b.wav,Error: boom"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i, line := range lines {
		if line != want[i] {
			t.Errorf("line %d = %q, want %q", i, line, want[i])
		}
	}
}

func TestTableStripsNewlinesFromMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	table, err := OpenTable(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := table.Append(Record{Name: "rir_1/a.wav", Status: Failed, Message: "line one\nline two"}); err != nil {
		t.Fatal(err)
	}
	table.Close()

	got, err := ParseTable(path)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("parsed %d records, want 1 (embedded newline must not split the row)", len(got))
	}
	if got[0].Message != "line one line two" {
		t.Errorf("message = %q, want newline flattened", got[0].Message)
	}
}

func TestTableRejectsDuplicateNames(t *testing.T) {
	table, err := OpenTable(filepath.Join(t.TempDir(), "scores.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer table.Close()

	if err := table.Append(Record{Name: "rir_1/a.wav", Score: 0.5, Status: Ok}); err != nil {
		t.Fatal(err)
	}

	err = table.Append(Record{Name: "rir_1/a.wav", Score: 0.6, Status: Ok})
	var persErr *PersistenceError
	if !errors.As(err, &persErr) {
		t.Fatalf("duplicate append got %v, want PersistenceError", err)
	}
}

func TestOpenTableTruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	if err := os.WriteFile(path, []byte("stale/content.wav,0.9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := OpenTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := table.Append(Record{Name: "rir_1/a.wav", Score: 0.5, Status: Ok}); err != nil {
		t.Fatal(err)
	}
	table.Close()

	got, err := ParseTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "rir_1/a.wav" {
		t.Errorf("got %+v, want only the fresh record", got)
	}
}

func TestParseTableMalformedRows(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{"no comma", "justonename\n"},
		{"non-numeric score", "rir_1/a.wav,not-a-number\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scores.csv")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := ParseTable(path)
			var persErr *PersistenceError
			if !errors.As(err, &persErr) {
				t.Fatalf("got %v, want PersistenceError", err)
			}
		})
	}
}

func TestParseTableSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	if err := os.WriteFile(path, []byte("rir_1/a.wav,0.5\n\nrir_1/b.wav,0.6\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ParseTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("parsed %d records, want 2", len(got))
	}
}
