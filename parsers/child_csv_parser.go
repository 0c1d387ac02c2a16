// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\parsers\child_csv_parser.go
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParsedChildCSVRecord は児童マスタCSVの1行を表します。
type ParsedChildCSVRecord struct {
	Line          int
	ChildID       string
	LastName      string
	FirstName     string
	LastNameKana  string
	FirstNameKana string
	Dob           string
	QrCodeName    string
}

// ParsedScheduleCSVRecord は利用予定CSVの1行を表します。
type ParsedScheduleCSVRecord struct {
	Line               int
	ChildID            string
	Weekday            int
	PlannedArrivalTime string
	ContractedDuration int
}

// ParseResult は読み取れた行と、スキップした行の理由を返します。
type ParseResult[T any] struct {
	Records []T
	Skipped []string
}

// ParseChildCSV は児童マスタCSVを解析します。入力は UTF-8 (DecodeReader 済み) を想定します。
func ParseChildCSV(r io.Reader) (*ParseResult[ParsedChildCSVRecord], error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	colIndex, err := readHeader(reader, []string{"last_name", "first_name"})
	if err != nil {
		return nil, err
	}

	result := &ParseResult[ParsedChildCSVRecord]{}
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%d行目: 読み取りエラー: %v", line, err))
			continue
		}
		get := fieldGetter(colIndex, rec)

		row := ParsedChildCSVRecord{
			Line:          line,
			ChildID:       get("child_id"),
			LastName:      get("last_name"),
			FirstName:     get("first_name"),
			LastNameKana:  get("last_name_kana"),
			FirstNameKana: get("first_name_kana"),
			Dob:           get("dob"),
			QrCodeName:    get("qr_code_name"),
		}
		if row.LastName == "" || row.FirstName == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%d行目: 氏名が空です", line))
			continue
		}
		result.Records = append(result.Records, row)
	}
	return result, nil
}

// ParseScheduleCSV は利用予定CSVを解析します。weekday は 0=日曜 〜 6=土曜です。
func ParseScheduleCSV(r io.Reader) (*ParseResult[ParsedScheduleCSVRecord], error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	colIndex, err := readHeader(reader, []string{"child_id", "weekday", "planned_arrival_time", "contracted_duration"})
	if err != nil {
		return nil, err
	}

	result := &ParseResult[ParsedScheduleCSVRecord]{}
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%d行目: 読み取りエラー: %v", line, err))
			continue
		}
		get := fieldGetter(colIndex, rec)

		childID := get("child_id")
		if childID == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%d行目: 児童IDが空です", line))
			continue
		}
		weekday, err := strconv.Atoi(get("weekday"))
		if err != nil || weekday < 0 || weekday > 6 {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%d行目: 曜日が不正です (%s)", line, get("weekday")))
			continue
		}
		minutes, err := strconv.Atoi(get("contracted_duration"))
		if err != nil || minutes < 0 {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%d行目: 契約時間が不正です (%s)", line, get("contracted_duration")))
			continue
		}
		planned := get("planned_arrival_time")
		if !plannedTimeFormat(planned) {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%d行目: 来所予定時刻が不正です (%s)", line, planned))
			continue
		}

		result.Records = append(result.Records, ParsedScheduleCSVRecord{
			Line:               line,
			ChildID:            childID,
			Weekday:            weekday,
			PlannedArrivalTime: planned,
			ContractedDuration: minutes,
		})
	}
	return result, nil
}

func readHeader(reader *csv.Reader, required []string) (map[string]int, error) {
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSVファイルが空です")
	}
	if err != nil {
		return nil, fmt.Errorf("CSVヘッダーの読み取りに失敗: %w", err)
	}
	return getColIndex(header, required)
}

func fieldGetter(colIndex map[string]int, rec []string) func(string) string {
	return func(key string) string {
		if idx, ok := colIndex[key]; ok && idx < len(rec) {
			return strings.TrimSpace(rec[idx])
		}
		return ""
	}
}

// plannedTimeFormat は HH:mm または HH:mm:ss を受け付けます。
func plannedTimeFormat(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return false
	}
	limits := []int{23, 59, 59}
	for i, p := range parts {
		if len(p) != 2 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return false
		}
	}
	return true
}
