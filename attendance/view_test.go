package attendance

import (
	"testing"
	"tsusho/model"
)

func TestViewSkipsRedundantSnapshot(t *testing.T) {
	v := NewView(tokyo)
	recs := []model.VisitRecord{sampleRecord()}
	names := MapLookup(map[string]string{"C001": "山田太郎"})

	if !v.Apply(recs, names) {
		t.Fatal("first snapshot not applied")
	}
	if v.Apply([]model.VisitRecord{sampleRecord()}, names) {
		t.Fatal("identical snapshot applied again")
	}

	changed := sampleRecord()
	changed.Remarks = str("更新")
	if !v.Apply([]model.VisitRecord{changed}, names) {
		t.Fatal("changed snapshot skipped")
	}
	if item, _ := v.Find("r1"); item.Note != "更新" {
		t.Errorf("Note = %q", item.Note)
	}
}

func TestViewEditGuard(t *testing.T) {
	v := NewView(tokyo)
	names := MapLookup(nil)
	v.Apply([]model.VisitRecord{sampleRecord()}, names)

	v.BeginEdit("r1", EditNote)
	local, _ := v.Find("r1")
	local = SaveNote(local, "入力中のメモ")
	v.Replace(local)

	pushed := sampleRecord()
	pushed.Remarks = str("他端末の更新")
	if v.Apply([]model.VisitRecord{pushed}, names) {
		t.Fatal("snapshot applied while editing")
	}
	if item, _ := v.Find("r1"); item.Note != "入力中のメモ" {
		t.Fatalf("local edit clobbered: %q", item.Note)
	}

	v.EndEdit()
	if !v.Apply([]model.VisitRecord{pushed}, names) {
		t.Fatal("snapshot after edit end not applied")
	}
	if item, _ := v.Find("r1"); item.Note != "他端末の更新" {
		t.Fatalf("Note = %q", item.Note)
	}
}

func TestViewEmptySnapshotAppliedOnce(t *testing.T) {
	v := NewView(tokyo)
	if !v.Apply(nil, nil) {
		t.Fatal("first empty snapshot should apply")
	}
	if v.Apply(nil, nil) {
		t.Fatal("second empty snapshot should be skipped")
	}
	v.Clear()
	if !v.Apply(nil, nil) {
		t.Fatal("snapshot after Clear should apply")
	}
}

func TestViewItemsSorted(t *testing.T) {
	v := NewView(tokyo)
	a := sampleRecord()
	b := sampleRecord()
	b.ID, b.ChildID = "r2", "C002"
	b.ActualArrivalTime, b.ActualLeaveTime = str("15:00"), str("16:30")
	v.Apply([]model.VisitRecord{a, b}, nil)

	v.SetSort(SortArrivalTime)
	if got := ids(v.Items()); got != "r2r1" {
		t.Errorf("asc = %s", got)
	}
	v.SetSort(SortArrivalTime)
	if got := ids(v.Items()); got != "r1r2" {
		t.Errorf("desc = %s", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint([]model.VisitRecord{sampleRecord()})
	b := Fingerprint([]model.VisitRecord{sampleRecord()})
	if a == "" || a != b {
		t.Fatalf("fingerprints %q %q", a, b)
	}
	r := sampleRecord()
	r.Version++
	if Fingerprint([]model.VisitRecord{r}) == a {
		t.Fatal("fingerprint ignores version")
	}
}
