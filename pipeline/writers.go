package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/woo-export/config"
	"github.com/aluiziolira/woo-export/models"
)

// ErrMalformedField is returned by Unquote for input that Quote could not have produced.
var ErrMalformedField = errors.New("malformed quoted field")

// Quote wraps s in double quotes and doubles any quote inside it.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Unquote reverses Quote.
func Unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", ErrMalformedField
	}
	inner := s[1 : len(s)-1]

	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] != '"' {
			b.WriteByte(inner[i])
			continue
		}
		if i+1 >= len(inner) || inner[i+1] != '"' {
			return "", ErrMalformedField
		}
		b.WriteByte('"')
		i++
	}
	return b.String(), nil
}

// EncodeRow renders one line: every field quoted, comma separated, newline terminated.
// Newlines inside fields are kept verbatim within the quotes.
func EncodeRow(fields []string) string {
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Quote(field))
	}
	b.WriteByte('\n')
	return b.String()
}

// CSVWriter writes rows as fully quoted CSV lines.
type CSVWriter struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes header when it is non-empty.
func NewCSVWriter(filename string, header []string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := bufio.NewWriter(f)
	if len(header) > 0 {
		if _, err := writer.WriteString(EncodeRow(header)); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		if err := writer.Flush(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends rows and flushes them to the file.
func (cw *CSVWriter) Write(rows []models.Row) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, row := range rows {
		if _, err := cw.writer.WriteString(EncodeRow(row)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	if err := cw.writer.Flush(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.Flush(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON objects keyed by the header.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	header  []string
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer. Without a header, keys are field_1, field_2, ...
func NewJSONWriter(filename string, header []string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: encoder,
		header:  header,
	}, nil
}

// Write appends rows in JSONL format.
func (jw *JSONWriter) Write(rows []models.Row) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, row := range rows {
		obj := make(map[string]string, len(row))
		for i, field := range row {
			obj[jw.key(i)] = field
		}
		if err := jw.encoder.Encode(obj); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

func (jw *JSONWriter) key(i int) string {
	if i < len(jw.header) {
		return jw.header[i]
	}
	return "field_" + strconv.Itoa(i+1)
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// OutputPaths lists the files NewOutputWriter creates for format. For json and
// dual output a ".csv" suffix on filename is swapped for ".jsonl".
func OutputPaths(format, filename string) []string {
	jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
	switch format {
	case config.FormatJSON:
		return []string{jsonFilename}
	case config.FormatDual:
		return []string{filename, jsonFilename}
	default:
		return []string{filename}
	}
}

// NewOutputWriter builds the writer for format.
func NewOutputWriter(format, filename string, header []string) (OutputWriter, error) {
	paths := OutputPaths(format, filename)
	switch format {
	case config.FormatCSV:
		return NewCSVWriter(paths[0], header)
	case config.FormatJSON:
		return NewJSONWriter(paths[0], header)
	case config.FormatDual:
		return NewDualWriter(paths[0], paths[1], header)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
