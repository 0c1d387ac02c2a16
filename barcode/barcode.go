// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\barcode\barcode.go
package barcode

import (
	"fmt"
	"strings"
	"unicode"
)

// Hint はQRコードに埋め込まれたイベント種別です。
type Hint string

const (
	HintNone      Hint = ""
	HintArrival   Hint = "arrival"
	HintDeparture Hint = "departure"
)

// Scan は受付で読み取ったコードの解析結果を格納します
type Scan struct {
	Code string // 児童ID または QRコード名
	Hint Hint
}

// MaxCodeLength は児童コードとして受け付ける最大長です。
const MaxCodeLength = 64

var hintWords = map[string]Hint{
	"arrival":   HintArrival,
	"in":        HintArrival,
	"来所":        HintArrival,
	"departure": HintDeparture,
	"out":       HintDeparture,
	"退所":        HintDeparture,
}

// ParseScan はスキャンされた文字列を解析します。
// "C001", "arrival:C001", "C001|out", "退所 C001" のような形式を受け付けます。
func ParseScan(code string) (*Scan, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("QRコードが空です")
	}

	parts := strings.FieldsFunc(code, isSeparator)
	result := &Scan{}
	for _, p := range parts {
		if h, ok := hintWords[strings.ToLower(p)]; ok {
			if result.Hint != HintNone && result.Hint != h {
				return nil, fmt.Errorf("来所と退所の両方が指定されています: %s", code)
			}
			result.Hint = h
			continue
		}
		if result.Code != "" {
			return nil, fmt.Errorf("児童コードが複数含まれています: %s", code)
		}
		result.Code = p
	}

	if result.Code == "" {
		return nil, fmt.Errorf("児童コードが含まれていません: %s", code)
	}
	if len(result.Code) > MaxCodeLength {
		return nil, fmt.Errorf("児童コードが長すぎます (%d文字)", len(result.Code))
	}
	for _, r := range result.Code {
		if unicode.IsControl(r) {
			return nil, fmt.Errorf("児童コードに不正な文字が含まれています")
		}
	}
	return result, nil
}

func isSeparator(r rune) bool {
	switch r {
	case ':', '|', ',':
		return true
	}
	return unicode.IsSpace(r)
}
