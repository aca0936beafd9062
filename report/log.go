package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/weiihann/tunesweep/harness"
)

// Log column names.
const (
	ColConstant   = "constant"
	ColBlockCount = "block_count"
	ColInputSize  = "input_size_bytes"
	ColElapsedMs  = "elapsed_ms"
)

// CSVLog is the append-only result log. The header is written when the
// log is created and every Append is flushed, so rows written before an
// abort remain readable.
type CSVLog struct {
	f          *os.File
	w          *csv.Writer
	blockCount bool
	rows       int
}

// CreateCSVLog creates (or overwrites) the log at path and writes the
// header. withBlockCount adds the derived block count column.
func CreateCSVLog(path string, withBlockCount bool) (*CSVLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log %s: %w", path, err)
	}

	l := &CSVLog{
		f:          f,
		w:          csv.NewWriter(f),
		blockCount: withBlockCount,
	}

	if err := l.write(l.header()); err != nil {
		f.Close()

		return nil, fmt.Errorf("write log header: %w", err)
	}

	return l, nil
}

func (l *CSVLog) header() []string {
	if l.blockCount {
		return []string{ColConstant, ColBlockCount, ColInputSize, ColElapsedMs}
	}

	return []string{ColConstant, ColInputSize, ColElapsedMs}
}

// Append writes one row.
func (l *CSVLog) Append(r harness.Result) error {
	row := make([]string, 0, 4)
	row = append(row, strconv.Itoa(r.Constant))

	if l.blockCount {
		row = append(row, strconv.FormatInt(r.BlockCount, 10))
	}

	row = append(row,
		strconv.FormatInt(r.InputSize, 10),
		strconv.FormatFloat(r.ElapsedMs(), 'f', 3, 64),
	)

	if err := l.write(row); err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	l.rows++

	return nil
}

// Rows returns the number of data rows appended so far.
func (l *CSVLog) Rows() int {
	return l.rows
}

// Close flushes the log, syncs it to stable storage and closes the file.
func (l *CSVLog) Close() error {
	l.w.Flush()

	if err := l.w.Error(); err != nil {
		l.f.Close()

		return fmt.Errorf("flush log: %w", err)
	}

	if err := syncFile(l.f); err != nil {
		l.f.Close()

		return fmt.Errorf("sync log: %w", err)
	}

	return l.f.Close()
}

func (l *CSVLog) write(record []string) error {
	if err := l.w.Write(record); err != nil {
		return err
	}

	l.w.Flush()

	return l.w.Error()
}

// ReadLog parses a result log written by CSVLog.
func ReadLog(r io.Reader) ([]harness.Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty log")
	}

	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(head))
	for i, name := range head {
		cols[name] = i
	}

	for _, name := range []string{ColConstant, ColInputSize, ColElapsedMs} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("log header missing column %q", name)
		}
	}

	var results []harness.Result

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if len(rec) != len(head) {
			return nil, fmt.Errorf("line %d: %d fields, want %d",
				line, len(rec), len(head))
		}

		res, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		results = append(results, res)
	}

	return results, nil
}

func parseRow(rec []string, cols map[string]int) (harness.Result, error) {
	var res harness.Result

	constant, err := strconv.Atoi(rec[cols[ColConstant]])
	if err != nil {
		return res, fmt.Errorf("constant: %w", err)
	}

	size, err := strconv.ParseInt(rec[cols[ColInputSize]], 10, 64)
	if err != nil {
		return res, fmt.Errorf("input size: %w", err)
	}

	ms, err := strconv.ParseFloat(rec[cols[ColElapsedMs]], 64)
	if err != nil {
		return res, fmt.Errorf("elapsed: %w", err)
	}

	res.Constant = constant
	res.InputSize = size
	res.Elapsed = time.Duration(ms * float64(time.Millisecond))

	if i, ok := cols[ColBlockCount]; ok {
		if res.BlockCount, err = strconv.ParseInt(rec[i], 10, 64); err != nil {
			return res, fmt.Errorf("block count: %w", err)
		}
	}

	return res, nil
}
