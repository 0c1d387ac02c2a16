package parsers

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestParseChildCSVSkipsBOMAndEmptyNames(t *testing.T) {
	src := "\xEF\xBB\xBFchild_id,last_name,first_name,qr_code_name\n" +
		"C001,山田,太郎,yamada\n" +
		"C002,,花子,\n" +
		",鈴木,一郎,\n"

	res, err := ParseChildCSV(DecodeReader(strings.NewReader(src), ""))
	if err != nil {
		t.Fatalf("ParseChildCSV: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(res.Records))
	}
	if res.Records[0].ChildID != "C001" || res.Records[0].QrCodeName != "yamada" {
		t.Errorf("first record = %+v", res.Records[0])
	}
	if res.Records[1].ChildID != "" || res.Records[1].LastName != "鈴木" {
		t.Errorf("second record = %+v", res.Records[1])
	}
	if len(res.Skipped) != 1 {
		t.Errorf("skipped = %v, want 1 entry", res.Skipped)
	}
}

func TestParseChildCSVShiftJIS(t *testing.T) {
	src := "child_id,last_name,first_name\nC003,佐藤,花子\n"
	var buf bytes.Buffer
	w := transform.NewWriter(&buf, japanese.ShiftJIS.NewEncoder())
	if _, err := io.WriteString(w, src); err != nil {
		t.Fatal(err)
	}
	w.Close()

	res, err := ParseChildCSV(DecodeReader(&buf, "sjis"))
	if err != nil {
		t.Fatalf("ParseChildCSV: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].LastName != "佐藤" {
		t.Fatalf("records = %+v", res.Records)
	}
}

func TestParseChildCSVMissingHeader(t *testing.T) {
	if _, err := ParseChildCSV(strings.NewReader("child_id,name\nC001,x\n")); err == nil {
		t.Fatal("expected missing header error")
	}
	if _, err := ParseChildCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected empty file error")
	}
}

func TestParseScheduleCSV(t *testing.T) {
	src := "child_id,weekday,planned_arrival_time,contracted_duration\n" +
		"C001,1,16:00,100\n" +
		"C001,7,16:00,100\n" +
		"C002,2,25:00,90\n" +
		"C003,3,17:30:00,abc\n" +
		"C004,5,17:30:00,120\n"

	res, err := ParseScheduleCSV(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseScheduleCSV: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("records = %+v, want 2", res.Records)
	}
	if r := res.Records[1]; r.ChildID != "C004" || r.Weekday != 5 || r.PlannedArrivalTime != "17:30:00" || r.ContractedDuration != 120 {
		t.Errorf("record = %+v", r)
	}
	if len(res.Skipped) != 3 {
		t.Errorf("skipped = %v, want 3", res.Skipped)
	}
}
