package genmanager

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olereon/automaton/internal/models"
)

// CREATIONDATETIMELAYOUT IS THE CANONICAL "DD Mon YYYY HH:MM:SS" FORMAT §3
// AND §6.3 REQUIRE BIT-EXACTLY.
const CreationDatetimeLayout = "02 Jan 2006 15:04:05"

const logSeparator = "========================================" // EXACTLY 40 '='

// LOGFILENAME IS THE FIXED BASENAME §6.3 MANDATES.
const LogFileName = "generation_downloads.txt"

// LOGPATH JOINS logsFolder WITH THE FIXED LOG FILE NAME.
func LogPath(logsFolder string) string {
	return filepath.Join(logsFolder, LogFileName)
}

// READLOG PARSES THE BIT-EXACT FOUR-LINE-RECORD FORMAT (§6.3). A MISSING
// FILE IS NOT AN ERROR — IT MEANS AN EMPTY LOG.
func ReadLog(path string) ([]models.DownloadLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []models.DownloadLogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		fileIDLine := strings.TrimSpace(scanner.Text())
		if fileIDLine == "" {
			continue
		}
		if !scanner.Scan() {
			break
		}
		datetimeLine := strings.TrimSpace(scanner.Text())
		if !scanner.Scan() {
			break
		}
		promptLine := scanner.Text()
		if !scanner.Scan() {
			break
		}
		// SEPARATOR LINE IS DISCARDED; ITS EXACT CONTENT IS VALIDATED ON WRITE,
		// NOT ON READ, SO HAND-EDITED LOGS STILL PARSE.

		seq := sequenceFromFileID(fileIDLine)
		entries = append(entries, models.DownloadLogEntry{
			FileID:           fileIDLine,
			CreationDatetime: datetimeLine,
			Prompt:           promptLine,
			SequenceIndex:    seq,
		})
	}
	return entries, scanner.Err()
}

// SEQUENCEFROMFILEID PARSES THE ZERO-PADDED DIGITS OUT OF A LOG LINE'S FILE
// ID. models.IncompleteFileID IS A SENTINEL, NOT A REAL SEQUENCE POSITION —
// PARSING ITS DIGITS LITERALLY WOULD BUMP DownloadLogIndex.nextSeq TO
// 1,000,000,000 ON RELOAD, SO IT MUST RETURN 0 HERE THE SAME WAY Load
// ALREADY EXCLUDES IT FROM THE DEDUP key MAP.
func sequenceFromFileID(fileID string) int {
	if fileID == models.IncompleteFileID {
		return 0
	}
	digits := strings.TrimPrefix(fileID, "#")
	var n int
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// APPENDLOG WRITES ONE BIT-EXACT FOUR-LINE RECORD, CREATING THE FILE AND ITS
// PARENT DIRECTORY IF NEEDED. THE LOG IS OPENED APPEND-ONLY PER THE
// SINGLE-WRITER INVARIANT (§5).
func AppendLog(path string, e models.DownloadLogEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s\n%s\n%s\n%s\n", e.FileID, e.CreationDatetime, e.Prompt, logSeparator)
	return err
}

// FORMATCREATIONDATETIME RENDERS t IN THE CANONICAL LOG FORMAT.
func FormatCreationDatetime(t time.Time) string {
	return t.Format(CreationDatetimeLayout)
}
