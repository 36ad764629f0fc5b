package storage

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/saviobatista/logbook-coverage/internal/testutils"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestNew(t *testing.T) {
	storage := New("/test/output")

	if storage.outputDir != "/test/output" {
		t.Errorf("Expected outputDir to be /test/output, got %s", storage.outputDir)
	}
	if storage.file != nil {
		t.Error("Expected file to be nil initially")
	}
	if storage.stopChan == nil {
		t.Error("Expected stopChan to be initialized")
	}
}

func TestStorage_FileName(t *testing.T) {
	storage := New("/archive")
	got := storage.FileName(time.Date(2024, 1, 5, 23, 0, 0, 0, time.FixedZone("PST", -8*3600)))
	if got != filepath.Join("/archive", "imports_2024-01-06.jsonl") {
		t.Errorf("Unexpected file name %s", got)
	}
}

func TestStorage_WriteReport(t *testing.T) {
	dir := t.TempDir()
	storage := NewNamed(dir, "reports")
	if err := storage.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	report := &types.CoverageReport{ID: "r1", PilotID: "pilot-1", Scope: "public", Visited: []string{"SFO"}}
	if err := storage.WriteReport(report); err != nil {
		t.Fatalf("WriteReport() failed: %v", err)
	}
	if err := storage.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	path := storage.FileName(time.Now())
	if filepath.Base(path) != "reports_"+time.Now().UTC().Format("2006-01-02")+".jsonl" {
		t.Errorf("Unexpected file name %s", path)
	}
	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	var got types.CoverageReport
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("Line is not a report: %v", err)
	}
	if got.ID != "r1" || got.PilotID != "pilot-1" {
		t.Errorf("Unexpected archived report: %+v", got)
	}
}

func TestStorage_StartCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archive")
	storage := New(dir)

	if err := storage.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := storage.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	if _, err := os.Stat(storage.FileName(time.Now())); err != nil {
		t.Errorf("Expected today's archive to exist: %v", err)
	}
}

func TestStorage_WriteImport(t *testing.T) {
	dir := t.TempDir()
	storage := New(dir)
	if err := storage.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	imp := testutils.MockLogbookImport("pilot-1")
	if err := storage.WriteImport(imp); err != nil {
		t.Fatalf("WriteImport() failed: %v", err)
	}
	if err := storage.WriteLine([]byte("{\"id\":\"raw\"}\n")); err != nil {
		t.Fatalf("WriteLine() failed: %v", err)
	}
	if err := storage.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	lines := readLines(t, storage.FileName(time.Now()))
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}

	var got types.LogbookImport
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("First line is not an import: %v", err)
	}
	if got.ID != imp.ID || got.CSV != imp.CSV {
		t.Errorf("Unexpected archived import: %+v", got)
	}
	if lines[1] != `{"id":"raw"}` {
		t.Errorf("Expected raw line without doubled newline, got %q", lines[1])
	}
}

func TestStorage_WriteWithoutStart(t *testing.T) {
	dir := t.TempDir()
	storage := New(dir)

	if err := storage.WriteLine([]byte("first")); err != nil {
		t.Fatalf("WriteLine() failed: %v", err)
	}
	if storage.file == nil {
		t.Fatal("WriteLine() should open a file lazily")
	}
	storage.file.Close()
}

func TestStorage_RotatesOnDayChange(t *testing.T) {
	dir := t.TempDir()
	storage := New(dir)

	day1 := time.Date(2024, 1, 5, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	current := day1
	storage.now = func() time.Time { return current }

	if err := storage.WriteLine([]byte("day one")); err != nil {
		t.Fatalf("WriteLine() failed: %v", err)
	}

	current = day2
	if err := storage.WriteLine([]byte("day two")); err != nil {
		t.Fatalf("WriteLine() failed: %v", err)
	}
	storage.file.Close()

	if _, err := os.Stat(storage.FileName(day1)); !os.IsNotExist(err) {
		t.Errorf("Expected the finished day to be removed after compression, got %v", err)
	}

	f, err := os.Open(storage.FileName(day1) + ".gz")
	if err != nil {
		t.Fatalf("Expected compressed archive: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Failed to open gzip stream: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to read gzip stream: %v", err)
	}
	if string(data) != "day one\n" {
		t.Errorf("Expected compressed content %q, got %q", "day one\n", data)
	}

	lines := readLines(t, storage.FileName(day2))
	if len(lines) != 1 || lines[0] != "day two" {
		t.Errorf("Unexpected current day content: %v", lines)
	}
}

func TestCompressFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imports.jsonl")
	content := strings.Repeat("{\"id\":\"x\"}\n", 100)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := CompressFile(path); err != nil {
		t.Fatalf("CompressFile() failed: %v", err)
	}

	f, err := os.Open(path + ".gz")
	if err != nil {
		t.Fatalf("Failed to open compressed file: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if string(data) != content {
		t.Error("Decompressed content does not match original")
	}
	if gz.Name != "imports.jsonl" {
		t.Errorf("Expected gzip name imports.jsonl, got %s", gz.Name)
	}

	if err := CompressFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("CompressFile() should fail for a missing file")
	}
}

func TestStorage_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	storage := New(dir)
	if err := storage.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := storage.WriteImport(testutils.MockLogbookImport("pilot")); err != nil {
				t.Errorf("WriteImport() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := storage.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if lines := readLines(t, storage.FileName(time.Now())); len(lines) != 20 {
		t.Errorf("Expected 20 lines, got %d", len(lines))
	}
}
