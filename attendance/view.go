package attendance

import (
	"time"
	"tsusho/model"
)

// EditKind は開いている編集の種類です。
type EditKind string

const (
	EditTime   EditKind = "time"
	EditNote   EditKind = "note"
	EditReason EditKind = "reason"
)

type editState struct {
	recordID string
	kind     EditKind
}

// View は1画面分の表示状態です。
// 編集中は配信された一覧を反映せず、同じ内容の一覧も反映しません。
// 呼び出し元の1ゴルーチンから使います。
type View struct {
	loc         *time.Location
	sort        SortConfig
	items       []Data
	fingerprint string
	editing     *editState
}

func NewView(loc *time.Location) *View {
	return &View{loc: loc}
}

// Apply は取得した一覧を反映します。反映した場合 true を返します。
func (v *View) Apply(records []model.VisitRecord, names NameLookup) bool {
	if v.editing != nil {
		return false
	}
	fp := Fingerprint(records)
	if fp == v.fingerprint && v.items != nil {
		return false
	}

	items := make([]Data, 0, len(records))
	for _, rec := range records {
		items = append(items, TransformRecord(rec, names, v.loc))
	}
	v.items = items
	v.fingerprint = fp
	return true
}

// Replace は保存が確定した1件を差し替えます。
func (v *View) Replace(item Data) {
	for i := range v.items {
		if v.items[i].ID == item.ID {
			v.items[i] = item
			return
		}
	}
	v.items = append(v.items, item)
}

func (v *View) BeginEdit(recordID string, kind EditKind) {
	v.editing = &editState{recordID: recordID, kind: kind}
}

func (v *View) EndEdit() {
	v.editing = nil
}

// Editing は編集中かどうかと、編集中のレコードIDを返します。
func (v *View) Editing() (string, EditKind, bool) {
	if v.editing == nil {
		return "", "", false
	}
	return v.editing.recordID, v.editing.kind, true
}

// SetSort は列の選択に応じて並び順を切り替えます。
func (v *View) SetSort(column SortColumn) SortConfig {
	v.sort = NextSort(v.sort, column)
	return v.sort
}

func (v *View) Sort() SortConfig {
	return v.sort
}

// Clear は日付の切り替え時に表示状態を破棄します。並び順は残します。
func (v *View) Clear() {
	v.items = nil
	v.fingerprint = ""
}

func (v *View) Fingerprint() string {
	return v.fingerprint
}

// Items は現在の並び順で並べた一覧です。
func (v *View) Items() []Data {
	return Sorted(v.items, v.sort)
}

func (v *View) Find(id string) (Data, bool) {
	for _, item := range v.items {
		if item.ID == id {
			return item, true
		}
	}
	return Data{}, false
}
