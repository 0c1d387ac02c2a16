// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\parsers\parser_utils.go
package parsers

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// SkipBOM はUTF-8 BOMをスキップします。
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	bom := []byte{0xEF, 0xBB, 0xBF}
	peeked, err := br.Peek(3)
	if err != nil {
		return br
	}
	isBOM := true
	for i, b := range bom {
		if peeked[i] != b {
			isBOM = false
			break
		}
	}
	if isBOM {
		br.Read(make([]byte, 3))
	}
	return br
}

// DecodeReader は encoding ("sjis" / "shift_jis" / それ以外は UTF-8) に応じて
// UTF-8 で読めるリーダーを返します。
func DecodeReader(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "sjis", "shift_jis", "shift-jis", "cp932":
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	default:
		return SkipBOM(r)
	}
}

// getColIndex はヘッダー名から列インデックスを取得するヘルパーです。
func getColIndex(header []string, required []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, colName := range header {
		colIndex[strings.TrimSpace(colName)] = i
	}
	for _, req := range required {
		if _, ok := colIndex[req]; !ok {
			return nil, fmt.Errorf("必須ヘッダーが見つかりません: %s", req)
		}
	}
	return colIndex, nil
}
