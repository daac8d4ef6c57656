package genmanager

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/olereon/automaton/internal/models"
)

func TestAppendAndReadLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := LogPath(dir)

	entries := []models.DownloadLogEntry{
		{FileID: models.FormatFileID(1), CreationDatetime: "01 Jan 2026 10:00:00", Prompt: "a cat in a hat"},
		{FileID: models.FormatFileID(2), CreationDatetime: "02 Jan 2026 11:30:00", Prompt: "a dog on a log"},
	}
	for _, e := range entries {
		if err := AppendLog(path, e); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
	}

	got, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadLog() returned %d entries, want 2", len(got))
	}
	if got[0].FileID != entries[0].FileID || got[0].CreationDatetime != entries[0].CreationDatetime || got[0].Prompt != entries[0].Prompt {
		t.Errorf("entry 0 = %+v, want %+v", got[0], entries[0])
	}
	if got[1].SequenceIndex != 2 {
		t.Errorf("entry 1 SequenceIndex = %d, want 2", got[1].SequenceIndex)
	}
}

func TestReadLogMissingFileIsNotAnError(t *testing.T) {
	entries, err := ReadLog(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err != nil {
		t.Fatalf("ReadLog() error = %v, want nil for missing file", err)
	}
	if entries != nil {
		t.Errorf("ReadLog() = %v, want nil", entries)
	}
}

func TestFormatCreationDatetimeCanonicalLayout(t *testing.T) {
	ts := time.Date(2026, time.March, 5, 9, 4, 7, 0, time.UTC)
	got := FormatCreationDatetime(ts)
	want := "05 Mar 2026 09:04:07"
	if got != want {
		t.Errorf("FormatCreationDatetime() = %q, want %q", got, want)
	}
}

func TestDownloadLogIndexSkipsIncompletePlaceholders(t *testing.T) {
	idx := models.NewDownloadLogIndex()
	idx.Load([]models.DownloadLogEntry{
		{FileID: models.IncompleteFileID, CreationDatetime: "01 Jan 2026 10:00:00", Prompt: "incomplete one"},
		{FileID: models.FormatFileID(1), CreationDatetime: "01 Jan 2026 10:00:00", Prompt: "incomplete one"},
	})

	real := models.DownloadLogEntry{CreationDatetime: "01 Jan 2026 10:00:00", Prompt: "incomplete one"}
	if !idx.Seen(real) {
		t.Error("expected the completed entry to register as seen")
	}

	placeholder := models.DownloadLogEntry{FileID: models.IncompleteFileID, CreationDatetime: "09 Sep 2026 09:09:09", Prompt: "anything"}
	if idx.Seen(placeholder) {
		t.Error("placeholder entries must never report as seen (they are excluded from dedup)")
	}
}

func TestDownloadLogIndexDuplicateKeyTruncatesPromptTo100(t *testing.T) {
	longPrompt := ""
	for i := 0; i < 150; i++ {
		longPrompt += "x"
	}

	idx := models.NewDownloadLogIndex()
	idx.Load([]models.DownloadLogEntry{
		{FileID: models.FormatFileID(1), CreationDatetime: "01 Jan 2026 10:00:00", Prompt: longPrompt},
	})

	differsOnlyAfter100 := longPrompt[:100] + "DIFFERENT_TAIL"
	dup := models.DownloadLogEntry{CreationDatetime: "01 Jan 2026 10:00:00", Prompt: differsOnlyAfter100}
	if !idx.Seen(dup) {
		t.Error("expected duplicate key to match on the first 100 characters of the prompt only")
	}
}

func TestDownloadLogIndexAppendAssignsSequentialFileIDs(t *testing.T) {
	idx := models.NewDownloadLogIndex()
	first := idx.Append(models.DownloadLogEntry{CreationDatetime: "01 Jan 2026 10:00:00", Prompt: "one"})
	second := idx.Append(models.DownloadLogEntry{CreationDatetime: "02 Jan 2026 10:00:00", Prompt: "two"})

	if first.FileID != models.FormatFileID(1) {
		t.Errorf("first.FileID = %q, want %q", first.FileID, models.FormatFileID(1))
	}
	if second.FileID != models.FormatFileID(2) {
		t.Errorf("second.FileID = %q, want %q", second.FileID, models.FormatFileID(2))
	}
}

// RELOADING A LOG CONTAINING AN INCOMPLETE PLACEHOLDER MUST NOT BUMP THE
// SEQUENCE COUNTER TO THE PLACEHOLDER'S LITERAL 999999999 — THE NEXT REAL
// APPEND MUST STILL GET A BIT-EXACT 9-DIGIT ID.
func TestReloadingIncompletePlaceholderDoesNotInflateSequence(t *testing.T) {
	dir := t.TempDir()
	path := LogPath(dir)

	if err := AppendLog(path, models.DownloadLogEntry{FileID: models.FormatFileID(1), CreationDatetime: "01 Jan 2026 10:00:00", Prompt: "one"}); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}
	if err := AppendLog(path, models.DownloadLogEntry{FileID: models.IncompleteFileID, CreationDatetime: "02 Jan 2026 10:00:00", Prompt: "two, failed mid-download"}); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	entries, err := ReadLog(path)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	if entries[1].SequenceIndex != 0 {
		t.Errorf("incomplete entry SequenceIndex = %d, want 0", entries[1].SequenceIndex)
	}

	idx := models.NewDownloadLogIndex()
	idx.Load(entries)

	next := idx.Append(models.DownloadLogEntry{CreationDatetime: "03 Jan 2026 10:00:00", Prompt: "three"})
	if next.FileID != models.FormatFileID(2) {
		t.Errorf("next.FileID = %q, want %q (nextSeq must follow the last real entry, not the placeholder)", next.FileID, models.FormatFileID(2))
	}
}
