package export

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4の用紙サイズ（インチ）
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)

// ChromeRenderer はヘッドレスChromeでHTMLをPDFに描画する。
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
}

// NewChromeRenderer はChromeRendererを生成する。
// execPathが空の場合はchromedpの既定の探索パスを使用する。
func NewChromeRenderer(execPath string, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChromeRenderer{
		execPath: execPath,
		timeout:  timeout,
	}
}

// RenderPDF はHTMLをA4の複数ページPDFに描画する。
func (r *ChromeRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ヘッドレスChromeでの描画に失敗: %w", err)
	}
	return pdf, nil
}

// compile-time interface check
var _ PDFRenderer = (*ChromeRenderer)(nil)
