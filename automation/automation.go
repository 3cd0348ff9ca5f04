// Package automation drives a headless Chrome through rod. It renders the
// HTML receipts of orders to PDF.
package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ErrNoBrowser is returned when no Chrome/Chromium binary is available.
var ErrNoBrowser = errors.New("no chrome browser available")

// PDFRenderer prints HTML documents with a headless browser. One browser
// is launched per render and renders are serialized.
type PDFRenderer struct {
	chromePath string
	timeout    time.Duration
	log        *zap.Logger
	mu         sync.Mutex
}

// NewPDFRenderer uses chromePath, or the browser found on the system when
// it is empty.
func NewPDFRenderer(chromePath string, log *zap.Logger) *PDFRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &PDFRenderer{chromePath: chromePath, timeout: 30 * time.Second, log: log}
}

func (p *PDFRenderer) binary() (string, error) {
	if p.chromePath != "" {
		return p.chromePath, nil
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	return "", ErrNoBrowser
}

// Available reports whether a browser binary can be located.
func (p *PDFRenderer) Available() bool {
	_, err := p.binary()
	return err == nil
}

// RenderPDF loads html into a blank page and prints it to A4 PDF bytes.
func (p *PDFRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	bin, err := p.binary()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Leakless(false): the leakless helper binary is flagged by some
	// antivirus products.
	l := launcher.New().Bin(bin).Headless(true).Leakless(false).Set("no-sandbox")
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBrowser, err)
	}
	defer l.Kill()

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("failed to set page content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	width, height := 8.27, 11.69
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      &width,
		PaperHeight:     &height,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to print pdf: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf stream: %w", err)
	}
	p.log.Debug("rendered pdf", zap.Int("bytes", len(data)))
	return data, nil
}
