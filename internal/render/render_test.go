package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// writeTestPDF writes a minimal PDF with the given number of blank letter-size
// pages and a correct cross-reference table
func writeTestPDF(t *testing.T, path string, pages int) {
	t.Helper()

	var objects []string
	kids := make([]string, pages)
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	)
	for i := 0; i < pages; i++ {
		content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (Page %d) Tj ET", i+1)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R "+
				"/Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> >>", 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(w/2, h/2, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.WriteFile(path, pngBytes(t, w, h), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rent-roll.pdf")
	writeTestPDF(t, path, 3)

	src, err := OpenPDF(path, 0, logger.Nop())
	if err != nil {
		t.Fatalf("OpenPDF() error = %v", err)
	}
	defer src.Close()

	if src.PageCount() != 3 {
		t.Errorf("PageCount() = %d, want 3", src.PageCount())
	}
	for _, index := range []int{-1, 3} {
		if _, err := src.Page(context.Background(), index); !errors.Is(err, model.ErrRender) {
			t.Errorf("Page(%d) error = %v, want ErrRender", index, err)
		}
	}
}

func TestOpenPDF_Invalid(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("not a pdf"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{garbage, filepath.Join(dir, "missing.pdf")} {
		if _, err := OpenPDF(path, DefaultDPI, logger.Nop()); !errors.Is(err, model.ErrRender) {
			t.Errorf("OpenPDF(%s) error = %v, want ErrRender", filepath.Base(path), err)
		}
	}
}

func TestPDFSource_Render(t *testing.T) {
	key := os.Getenv("UNIDOC_LICENSE_API_KEY")
	if key == "" {
		t.Skip("UNIDOC_LICENSE_API_KEY not set")
	}
	if err := SetLicenseKey(key); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeTestPDF(t, path, 1)

	src, err := OpenPDF(path, 144, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	page, err := src.Page(context.Background(), 0)
	if err != nil {
		t.Fatalf("Page(0) error = %v", err)
	}
	w, _, err := PageSize(page)
	if err != nil {
		t.Fatal(err)
	}
	// 612pt at 144 DPI
	if w != 1224 {
		t.Errorf("rendered width = %d, want 1224", w)
	}
}

func TestPDFSource_Closed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	writeTestPDF(t, path, 1)

	src, err := OpenPDF(path, DefaultDPI, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := src.Page(context.Background(), 0); !errors.Is(err, model.ErrRender) {
		t.Errorf("Page() after Close error = %v, want ErrRender", err)
	}
}

func TestOpenImageDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "page-02.png"), 30, 20)
	writePNG(t, filepath.Join(dir, "page-01.png"), 10, 20)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := OpenImageDir(dir, logger.Nop())
	if err != nil {
		t.Fatalf("OpenImageDir() error = %v", err)
	}
	if src.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", src.PageCount())
	}

	page, err := src.Page(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	w, h, err := PageSize(page)
	if err != nil || w != 10 || h != 20 {
		t.Errorf("first page size = %dx%d (%v), want 10x20 from page-01.png", w, h, err)
	}

	if _, err := src.Page(context.Background(), 2); !errors.Is(err, model.ErrRender) {
		t.Errorf("Page(2) error = %v, want ErrRender", err)
	}
}

func TestOpenImageDir_Empty(t *testing.T) {
	if _, err := OpenImageDir(t.TempDir(), logger.Nop()); !errors.Is(err, model.ErrRender) {
		t.Errorf("error = %v, want ErrRender", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "doc.pdf")
	writeTestPDF(t, pdfPath, 2)
	pngPath := filepath.Join(dir, "scan.PNG")
	writePNG(t, pngPath, 5, 5)
	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		location  string
		wantPages int
		wantErr   error
	}{
		{"pdf", pdfPath, 2, nil},
		{"single image", pngPath, 1, nil},
		{"directory", dir, 1, nil},
		{"unsupported", txtPath, 0, model.ErrRender},
		{"missing", filepath.Join(dir, "nope.pdf"), 0, model.ErrRender},
		{"gcs without client", "gs://bucket/doc.pdf", 0, model.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Open(context.Background(), tt.location, Options{Logger: logger.Nop()})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
				}
				if src != nil {
					t.Error("Open() returned a source with an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer src.Close()
			if src.PageCount() != tt.wantPages {
				t.Errorf("PageCount() = %d, want %d", src.PageCount(), tt.wantPages)
			}
		})
	}
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://deals/2024/rent-roll.pdf", "deals", "2024/rent-roll.pdf", false},
		{"gs://deals/x.png", "deals", "x.png", false},
		{"gs://deals", "", "", true},
		{"gs:///x.pdf", "", "", true},
		{"s3://deals/x.pdf", "", "", true},
	}

	for _, tt := range tests {
		bucket, object, err := ParseGCSURI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			continue
		}
		if bucket != tt.wantBucket || object != tt.wantObject {
			t.Errorf("ParseGCSURI(%q) = %q, %q", tt.uri, bucket, object)
		}
	}
}

// fakeBucket serves objects from memory
type fakeBucket map[string][]byte

func (f fakeBucket) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	data, ok := f[bucket+"/"+object]
	if !ok {
		return nil, errors.New("storage: object doesn't exist")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestOpenGCS(t *testing.T) {
	objects := fakeBucket{"deals/scans/page.png": pngBytes(t, 40, 30)}

	src, err := OpenGCS(context.Background(), objects, "gs://deals/scans/page.png", DefaultDPI, logger.Nop())
	if err != nil {
		t.Fatalf("OpenGCS() error = %v", err)
	}
	if src.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", src.PageCount())
	}
	page, err := src.Page(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if w, h, _ := PageSize(page); w != 40 || h != 30 {
		t.Errorf("page size = %dx%d, want 40x30", w, h)
	}

	tmp := src.tmpDir
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Errorf("temp dir %s not removed", tmp)
	}
}

func TestOpenGCS_Errors(t *testing.T) {
	objects := fakeBucket{}

	tests := []struct {
		name    string
		uri     string
		wantErr error
	}{
		{"missing object", "gs://deals/missing.pdf", model.ErrRender},
		{"unsupported type", "gs://deals/notes.docx", model.ErrRender},
		{"bad uri", "gs://deals", model.ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenGCS(context.Background(), objects, tt.uri, DefaultDPI, logger.Nop()); !errors.Is(err, tt.wantErr) {
				t.Errorf("OpenGCS() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPageSize_Invalid(t *testing.T) {
	if _, _, err := PageSize([]byte("nope")); !errors.Is(err, model.ErrRender) {
		t.Errorf("error = %v, want ErrRender", err)
	}
}
