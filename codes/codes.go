// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\codes\codes.go

package codes

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"tsusho/database"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Table は code_master をメモリに保持し、コード値と表示名を相互に引き当てます。
type Table struct {
	mu      sync.RWMutex
	names   map[string]map[string]string
	reverse map[string]map[string]string
	list    map[string][]model.CodeMaster
}

func NewTable() *Table {
	t := &Table{}
	t.set(nil)
	return t
}

// Load は code_master の全件を読み込み直します。
func (t *Table) Load(ctx context.Context, q sqlx.QueryerContext) error {
	all, err := database.GetAllCodes(ctx, q)
	if err != nil {
		return fmt.Errorf("codes.Load: %w", err)
	}
	t.set(all)
	return nil
}

func (t *Table) set(all []model.CodeMaster) {
	names := make(map[string]map[string]string)
	reverse := make(map[string]map[string]string)
	list := make(map[string][]model.CodeMaster)
	for _, c := range all {
		if names[c.CodeType] == nil {
			names[c.CodeType] = make(map[string]string)
			reverse[c.CodeType] = make(map[string]string)
		}
		names[c.CodeType][c.CodeValue] = c.DisplayText
		reverse[c.CodeType][c.DisplayText] = c.CodeValue
		list[c.CodeType] = append(list[c.CodeType], c)
	}

	t.mu.Lock()
	t.names, t.reverse, t.list = names, reverse, list
	t.mu.Unlock()
}

// ResolveName はコード値を表示名に変換します。見つからない場合はコード値をそのまま返します。
func (t *Table) ResolveName(codeType, value string) string {
	if value == "" {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if name, ok := t.names[codeType][value]; ok {
		return name
	}
	return value
}

// ResolveCode は表示名をコード値に変換します。
func (t *Table) ResolveCode(codeType, name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reverse[codeType][name]
}

// Codes は種別ごとのコード一覧です。種別が空なら全件を返します。
func (t *Table) Codes(codeType string) []model.CodeMaster {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if codeType != "" {
		return append([]model.CodeMaster{}, t.list[codeType]...)
	}
	out := []model.CodeMaster{}
	for _, l := range t.list {
		out = append(out, l...)
	}
	return out
}

// ReasonName は早退・超過理由の表示名です。
func (t *Table) ReasonName(value string) string {
	return t.ResolveName(model.CodeTypeEarlyLeaveReason, value)
}

// LoadCSVFile は SOU/REASONS.CSV (Shift_JIS) を読み込みます。
// 列は code_type, code_value, display_text, short_text (省略可) です。
func LoadCSVFile(path string) ([]model.CodeMaster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadCSVFile: open %s: %w", path, err)
	}
	defer file.Close()

	decoder := japanese.ShiftJIS.NewDecoder()
	reader := csv.NewReader(transform.NewReader(file, decoder))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	out := []model.CodeMaster{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LoadCSVFile: read %s: %w", path, err)
		}
		if len(record) < 3 || strings.TrimSpace(record[0]) == "" || record[0] == "code_type" {
			continue
		}
		c := model.CodeMaster{
			CodeType:    strings.TrimSpace(record[0]),
			CodeValue:   strings.TrimSpace(record[1]),
			DisplayText: strings.TrimSpace(record[2]),
		}
		if len(record) > 3 && record[3] != "" {
			c.ShortText.String, c.ShortText.Valid = record[3], true
		}
		out = append(out, c)
	}
	return out, nil
}
