package render

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/unidoc/unipdf/v3/common"
	"github.com/unidoc/unipdf/v3/common/license"
	unipdf "github.com/unidoc/unipdf/v3/model"
	unirender "github.com/unidoc/unipdf/v3/render"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

func init() {
	common.SetLogger(common.NewConsoleLogger(common.LogLevelError))
}

// SetLicenseKey enables the unidoc metered license used by the rasterizer
func SetLicenseKey(key string) error {
	if key == "" {
		return nil
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("%w: unidoc license: %w", model.ErrConfig, err)
	}
	return nil
}

// PDFSource rasterizes PDF pages on demand
type PDFSource struct {
	path      string
	dpi       int
	pageCount int
	logger    *logger.Logger

	// the unipdf reader is not safe for concurrent use
	mu     sync.Mutex
	file   *os.File
	reader *unipdf.PdfReader
}

// OpenPDF validates a PDF and prepares it for rendering
func OpenPDF(path string, dpi int, log *logger.Logger) (*PDFSource, error) {
	if log == nil {
		log = logger.Get()
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	if err := ValidatePDF(path); err != nil {
		return nil, err
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: counting pages in %s: %w", model.ErrRender, path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRender, err)
	}
	reader, err := unipdf.NewPdfReaderLazy(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to create PDF reader: %w", model.ErrRender, err)
	}

	log.Debugw("Opened PDF", "path", path, "pages", pageCount, "dpi", dpi)

	return &PDFSource{
		path:      path,
		dpi:       dpi,
		pageCount: pageCount,
		logger:    log,
		file:      f,
		reader:    reader,
	}, nil
}

// ValidatePDF checks that a PDF is structurally readable
func ValidatePDF(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %w", model.ErrRender, err)
	}

	conf := pdfcpu.NewDefaultConfiguration()
	conf.ValidationMode = pdfcpu.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("%w: PDF validation failed: %w", model.ErrRender, err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF
func (s *PDFSource) PageCount() int {
	return s.pageCount
}

// Page renders the page at index (0-based) to PNG at the configured DPI
func (s *PDFSource) Page(ctx context.Context, index int) ([]byte, error) {
	if err := checkIndex(index, s.pageCount); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil {
		return nil, fmt.Errorf("%w: %s is closed", model.ErrRender, s.path)
	}

	page, err := s.reader.GetPage(index + 1)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get page %d: %w", model.ErrRender, index, err)
	}

	mediaBox, err := page.GetMediaBox()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get media box of page %d: %w", model.ErrRender, index, err)
	}

	// PDF points are 1/72 inch
	device := unirender.NewImageDevice()
	device.OutputWidth = int((mediaBox.Urx - mediaBox.Llx) * float64(s.dpi) / 72.0)

	img, err := device.Render(page)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to render page %d: %w", model.ErrRender, index, err)
	}

	b := img.Bounds()
	s.logger.Debugw("Rendered page", "page", index, "width", b.Dx(), "height", b.Dy())

	return encodePNG(img)
}

// Close releases the underlying file
func (s *PDFSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reader = nil
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
