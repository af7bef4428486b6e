package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/quick"

	"github.com/aluiziolira/woo-export/models"
	"github.com/google/go-cmp/cmp"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: `""`},
		{in: "plain", want: `"plain"`},
		{in: `say "hi"`, want: `"say ""hi"""`},
		{in: "a,b", want: `"a,b"`},
		{in: "line1\nline2", want: "\"line1\nline2\""},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Fatalf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	roundTrip := func(s string) bool {
		got, err := Unquote(Quote(s))
		return err == nil && got == s
	}
	if err := quick.Check(roundTrip, nil); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"", `"`, `""`, `a"b"c`, "\n", `"quoted, with comma"`} {
		if !roundTrip(s) {
			t.Fatalf("round trip failed for %q", s)
		}
	}
}

func FuzzQuoteRoundTrip(f *testing.F) {
	for _, seed := range []string{"", `"`, `Hoodie "Classic"`, "a\nb", ",,,"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		got, err := Unquote(Quote(s))
		if err != nil {
			t.Fatalf("unquote: %v", err)
		}
		if got != s {
			t.Fatalf("round trip = %q, want %q", got, s)
		}
	})
}

func TestUnquoteRejectsMalformed(t *testing.T) {
	for _, in := range []string{``, `"`, `abc`, `"a"b"`, `"unterminated`} {
		if _, err := Unquote(in); !errors.Is(err, ErrMalformedField) {
			t.Fatalf("Unquote(%q) error = %v, want ErrMalformedField", in, err)
		}
	}
}

func TestEncodeRow(t *testing.T) {
	got := EncodeRow([]string{"Mug", `12" plate`, ""})
	want := `"Mug","12"" plate",""` + "\n"
	if got != want {
		t.Fatalf("EncodeRow = %q, want %q", got, want)
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "products.csv")

	header := []string{"title", "price", "product_link", "category", "image_url"}
	writer, err := NewCSVWriter(path, header)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	rows := []models.Row{
		{`Hoodie "Classic"`, "45.00", "https://shop.test/p/hoodie", "Clothing", "https://shop.test/img/h.jpg"},
		{"Mug, large", "9", "https://shop.test/p/mug", "", ""},
	}
	if err := writer.Write(rows); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	wantFirst := `"title","price","product_link","category","image_url"`
	if first := strings.SplitN(string(raw), "\n", 2)[0]; first != wantFirst {
		t.Fatalf("header line = %q, want %q", first, wantFirst)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{header, rows[0], rows[1]}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVWriterWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.csv")
	writer, err := NewCSVWriter(path, nil)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("empty headerless file should not validate")
	}
	if err := writer.Write([]models.Row{{"one"}, {"two\nlines"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got, want := string(raw), "\"one\"\n\"two\nlines\"\n"; got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.jsonl")

	writer, err := NewJSONWriter(path, []string{"title", "price"})
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write([]models.Row{{"A", "1"}, {"B & C", "2", "extra"}}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	var got []map[string]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var decoded map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		got = append(got, decoded)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}

	want := []map[string]string{
		{"title": "A", "price": "1"},
		{"title": "B & C", "price": "2", "field_3": "extra"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")
	jsonPath := filepath.Join(dir, "products.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath, []string{"Product Title"})
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write([]models.Row{{"Test"}}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestNewOutputWriter(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		format string
		files  []string
	}{
		{format: "csv", files: []string{"csv_out.csv"}},
		{format: "json", files: []string{"json_out.jsonl"}},
		{format: "dual", files: []string{"dual_out.csv", "dual_out.jsonl"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w, err := NewOutputWriter(tt.format, filepath.Join(dir, tt.format+"_out.csv"), []string{"h"})
			if err != nil {
				t.Fatalf("new writer: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			for _, name := range tt.files {
				if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
					t.Fatalf("expected %s: %v", name, err)
				}
			}
		})
	}

	if _, err := NewOutputWriter("xml", filepath.Join(dir, "x.csv"), nil); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func BenchmarkCSVWriter_Throughput(b *testing.B) {
	for _, batch := range []int{1, 50, 100} {
		b.Run(fmt.Sprintf("batch=%d", batch), func(b *testing.B) {
			writer, err := NewCSVWriter(filepath.Join(b.TempDir(), "bench.csv"), []string{"title", "price"})
			if err != nil {
				b.Fatalf("create writer: %v", err)
			}
			rows := make([]models.Row, batch)
			for i := range rows {
				rows[i] = models.Row{fmt.Sprintf(`Product "%d", deluxe`, i), "10.00"}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := writer.Write(rows); err != nil {
					b.Fatalf("write: %v", err)
				}
			}
			b.StopTimer()
			if err := writer.Close(); err != nil {
				b.Fatalf("close: %v", err)
			}
			elapsed := b.Elapsed().Seconds()
			if elapsed > 0 {
				b.ReportMetric(float64(b.N*batch)/elapsed, "rows/sec")
			}
		})
	}
}
