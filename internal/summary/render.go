package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  padding: 40px;
  min-height: 100vh;
}
.container {
  max-width: 800px;
  margin: 0 auto;
  background: white;
  border-radius: 16px;
  box-shadow: 0 20px 60px rgba(0, 0, 0, 0.3);
  overflow: hidden;
}
.header {
  background: linear-gradient(135deg, #4facfe 0%, #00f2fe 100%);
  color: white;
  padding: 30px 40px;
}
.header h1 { font-size: 28px; margin-bottom: 15px; text-shadow: 0 2px 4px rgba(0,0,0,0.2); }
.header .meta { font-size: 14px; opacity: 0.9; }
.header .meta span { margin-right: 20px; }
.content { padding: 40px; color: #333; line-height: 1.8; }
.content h1 { display: none; }
.content h2 {
  color: #4facfe;
  font-size: 20px;
  margin: 25px 0 15px 0;
  padding-bottom: 8px;
  border-bottom: 2px solid #e0e0e0;
}
.content h3 { color: #555; font-size: 16px; margin: 20px 0 10px 0; }
.content p { margin: 10px 0; text-align: justify; }
.content ul, .content ol { margin: 10px 0 10px 25px; }
.content li { margin: 8px 0; }
.content strong { color: #4facfe; }
.content hr { display: none; }
.footer {
  background: #f8f9fa;
  padding: 20px 40px;
  text-align: center;
  color: #888;
  font-size: 12px;
  border-top: 1px solid #e0e0e0;
}
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>📊 群聊总结</h1>
    <div class="meta">
      <span>📅 {{DATE}}</span>
      <span>💬 {{MSG_COUNT}} 条消息</span>
      <span>🕐 {{GEN_TIME}}</span>
    </div>
  </div>
  <div class="content">
{{CONTENT}}
  </div>
  <div class="footer">由 AI 自动生成 · chatclaw</div>
</div>
</body>
</html>`

// buildPage fills the summary card template.
func buildPage(contentHTML, dateStr string, msgCount int, genTime string) string {
	r := strings.NewReplacer(
		"{{DATE}}", dateStr,
		"{{MSG_COUNT}}", fmt.Sprintf("%d", msgCount),
		"{{GEN_TIME}}", genTime,
		"{{CONTENT}}", contentHTML,
	)
	return r.Replace(pageTemplate)
}

// renderToImage screenshots the HTML with a headless browser and writes a
// PNG to outputPath. The browser is launched per call; summaries run once
// a day and keeping Chromium resident is not worth it.
func renderToImage(htmlPage, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("render: create output dir: %w", err)
	}

	htmlFile, err := os.CreateTemp(dir, "summary-*.html")
	if err != nil {
		return fmt.Errorf("render: temp html: %w", err)
	}
	defer os.Remove(htmlFile.Name())
	if _, err := htmlFile.WriteString(htmlPage); err != nil {
		htmlFile.Close()
		return fmt.Errorf("render: write html: %w", err)
	}
	if err := htmlFile.Close(); err != nil {
		return fmt.Errorf("render: close html: %w", err)
	}

	browser := rod.New()
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("render: connect browser: %w", err)
	}
	defer browser.Close()

	abs, err := filepath.Abs(htmlFile.Name())
	if err != nil {
		return fmt.Errorf("render: resolve html path: %w", err)
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + abs})
	if err != nil {
		return fmt.Errorf("render: open page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             900,
		Height:            1000,
		DeviceScaleFactor: 2,
	}); err != nil {
		return fmt.Errorf("render: set viewport: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("render: wait load: %w", err)
	}

	// Full-page capture so long summaries are not cut at the viewport.
	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("render: screenshot: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("render: write image: %w", err)
	}
	return nil
}
