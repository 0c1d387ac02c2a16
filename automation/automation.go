// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\automation\automation.go
package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// PrintTimeout はブラウザ起動から PDF 書き出しまでの上限です。
const PrintTimeout = 60 * time.Second

// Printer は HTML を PDF に変換します。
type Printer interface {
	Print(ctx context.Context, htmlContent string) ([]byte, error)
}

// RodPrinter はヘッドレスブラウザで HTML を印刷します。
type RodPrinter struct {
	// Bin はブラウザの実行ファイルです。空の場合は自動検出 (無ければダウンロード) します。
	Bin string
}

func (p RodPrinter) Print(ctx context.Context, htmlContent string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, PrintTimeout)
	defer cancel()

	// Leakless(false) でセキュリティソフト対策
	l := launcher.New().
		Headless(true).
		Leakless(false)
	if p.Bin != "" {
		l = l.Bin(p.Bin)
	}
	u, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("ブラウザの起動に失敗: %w", err)
	}

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("ブラウザへの接続に失敗: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("ページの作成に失敗: %w", err)
	}
	if err := page.SetDocumentContent(htmlContent); err != nil {
		return nil, fmt.Errorf("日報の読み込みに失敗: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("日報の読み込みに失敗: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{
		Landscape:         true,
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("PDFの作成に失敗: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("PDFの読み出しに失敗: %w", err)
	}
	return data, nil
}

// PrintPDF は HTML を PDF にして saveDir に保存し、保存先のパスを返します。
func PrintPDF(ctx context.Context, p Printer, htmlContent, saveDir, fileName string) (string, error) {
	// 保存先ディレクトリの確保
	if _, err := os.Stat(saveDir); os.IsNotExist(err) {
		if err := os.MkdirAll(saveDir, 0755); err != nil {
			return "", fmt.Errorf("保存先フォルダの作成に失敗: %v", err)
		}
	}

	data, err := p.Print(ctx, htmlContent)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("PDFデータが空です")
	}

	destPath := filepath.Join(saveDir, fileName)
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return "", fmt.Errorf("ファイルの書き込みに失敗: %v", err)
	}
	return destPath, nil
}
