// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\visit\service.go
package visit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"tsusho/attendance"
	"tsusho/database"
	"tsusho/model"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Notifier は保存が確定した日付を受け取ります (ライブ配信用)。
type Notifier interface {
	Notify(visitDate string)
}

type Service struct {
	db       *sqlx.DB
	loc      *time.Location
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewService(db *sqlx.DB, loc *time.Location, notifier Notifier, logger *logrus.Logger) *Service {
	return &Service{db: db, loc: loc, notifier: notifier, logger: logger, now: time.Now}
}

// SetClock はテスト用に現在時刻の取得方法を差し替えます。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// Today は施設タイムゾーンでの今日 (YYYY-MM-DD) です。
func (s *Service) Today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

func (s *Service) Now() time.Time {
	return s.now()
}

// Snapshot は指定日の実績と児童名の引き当てを返します。
func (s *Service) Snapshot(ctx context.Context, visitDate string) ([]model.VisitRecord, attendance.NameLookup, error) {
	records, err := database.GetVisitRecordsByDate(ctx, s.db, visitDate)
	if err != nil {
		return nil, nil, err
	}
	names, err := database.GetChildNameMap(ctx, s.db)
	if err != nil {
		return nil, nil, err
	}
	return records, attendance.MapLookup(names), nil
}

// ListByDate は指定日の表示用データを返します。
func (s *Service) ListByDate(ctx context.Context, visitDate string) ([]attendance.Data, error) {
	records, names, err := s.Snapshot(ctx, visitDate)
	if err != nil {
		return nil, err
	}
	items := make([]attendance.Data, 0, len(records))
	for _, rec := range records {
		items = append(items, attendance.TransformRecord(rec, names, s.loc))
	}
	return items, nil
}

// ListByMonth は YYYY-MM の月の表示用データを日付順で返します (月次帳票用)。
func (s *Service) ListByMonth(ctx context.Context, month string) ([]attendance.Data, error) {
	records, err := database.GetVisitRecordsByMonth(ctx, s.db, month)
	if err != nil {
		return nil, err
	}
	names, err := database.GetChildNameMap(ctx, s.db)
	if err != nil {
		return nil, err
	}
	lookup := attendance.MapLookup(names)
	items := make([]attendance.Data, 0, len(records))
	for _, rec := range records {
		items = append(items, attendance.TransformRecord(rec, lookup, s.loc))
	}
	return items, nil
}

// Get は1件の表示用データを返します。
func (s *Service) Get(ctx context.Context, id string) (attendance.Data, error) {
	rec, err := database.GetVisitRecordByID(ctx, s.db, id)
	if err != nil {
		return attendance.Data{}, err
	}
	return s.present(ctx, rec)
}

// FindForChild は児童・日付から実績を探します。
func (s *Service) FindForChild(ctx context.Context, childID, visitDate string) (attendance.Data, error) {
	rec, err := database.GetVisitRecordByChildAndDate(ctx, s.db, childID, visitDate)
	if err != nil {
		return attendance.Data{}, err
	}
	return s.present(ctx, rec)
}

func (s *Service) present(ctx context.Context, rec *model.VisitRecord) (attendance.Data, error) {
	names, err := database.GetChildNameMap(ctx, s.db)
	if err != nil {
		return attendance.Data{}, err
	}
	return attendance.TransformRecord(*rec, attendance.MapLookup(names), s.loc), nil
}

// RecordArrival は来所時刻 (施設タイムゾーンの HH:mm) を記録します。
// 退所済みの場合は退所より後の来所を拒否し、利用時間を再計算して保存します。
func (s *Service) RecordArrival(ctx context.Context, id string, now time.Time, by string, baseVersion *int) (attendance.Data, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return attendance.Data{}, err
	}
	clock := now.In(s.loc).Format("15:04")
	edited, err := attendance.ApplyEdit(item, attendance.ArrivalEdit{ID: id, Value: clock}, s.loc)
	if err != nil {
		return item, err
	}
	patch := s.timesPatch(edited, attendance.KindArrival)
	manual := true
	patch.IsManuallyEntered = &manual
	return s.update(ctx, "RecordArrival", id, patch, by, baseVersion)
}

// RecordDeparture は退所時刻を記録し、利用時間と現在の理由を保存します。
// 来所時刻が無い場合は何もせず ErrNotArrived を返します。
func (s *Service) RecordDeparture(ctx context.Context, id string, now time.Time, by string, baseVersion *int) (attendance.Data, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return attendance.Data{}, err
	}
	if item.ArrivalTime == nil {
		return item, attendance.ErrNotArrived
	}

	// 記録は分単位。来所と同じ丸めで比較する
	departure := now.In(s.loc).Truncate(time.Minute)
	if departure.Before(*item.ArrivalTime) {
		return item, attendance.ErrDepartureBeforeArrival
	}
	item = attendance.CalculateUsageTime(item, departure)
	return s.update(ctx, "RecordDeparture", id, s.timesPatch(item, attendance.KindDeparture), by, baseVersion)
}

// SaveEditedTime は手入力の時刻を検証してから保存します。検証エラー時は何も書き込みません。
func (s *Service) SaveEditedTime(ctx context.Context, target attendance.EditTarget, by string, baseVersion *int) (attendance.Data, error) {
	if !attendance.ValidClock(target.Clock()) {
		return attendance.Data{}, fmt.Errorf("%q: %w", target.Clock(), attendance.ErrInvalidTimeFormat)
	}
	item, err := s.Get(ctx, target.RecordID())
	if err != nil {
		return attendance.Data{}, err
	}
	edited, err := attendance.ApplyEdit(item, target, s.loc)
	if err != nil {
		return item, err
	}
	patch := s.timesPatch(edited, target.Kind())
	manual := true
	patch.IsManuallyEntered = &manual
	return s.update(ctx, "SaveEditedTime", target.RecordID(), patch, by, baseVersion)
}

// ResetTime は時刻を消去します。来所の消去は退所と利用時間も消去します。
func (s *Service) ResetTime(ctx context.Context, id string, kind attendance.TimeKind, by string, baseVersion *int) (attendance.Data, error) {
	patch := model.VisitRecordPatch{
		ActualLeaveTime: &sql.NullString{},
		ActualDuration:  &sql.NullInt64{},
	}
	if kind == attendance.KindArrival {
		patch.ActualArrivalTime = &sql.NullString{}
	}
	return s.update(ctx, "ResetTime", id, patch, by, baseVersion)
}

func (s *Service) UpdateReason(ctx context.Context, id, code, by string, baseVersion *int) (attendance.Data, error) {
	item := attendance.UpdateReason(attendance.Data{}, code)
	patch := model.VisitRecordPatch{EarlyLeaveReasonCode: nullText(item.Reason)}
	return s.update(ctx, "UpdateReason", id, patch, by, baseVersion)
}

func (s *Service) SaveNote(ctx context.Context, id, text, by string, baseVersion *int) (attendance.Data, error) {
	item := attendance.SaveNote(attendance.Data{}, text)
	patch := model.VisitRecordPatch{Remarks: nullText(item.Note)}
	return s.update(ctx, "SaveNote", id, patch, by, baseVersion)
}

// Delete は実績を削除済みにし、その日の一覧に通知します。
func (s *Service) Delete(ctx context.Context, id, by string) error {
	rec, err := database.GetVisitRecordByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := database.SoftDeleteVisitRecord(ctx, s.db, id, by, s.now().Format(time.RFC3339)); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"recordId": id, "visitDate": rec.VisitDate}).Info("visit record deleted")
	if s.notifier != nil {
		s.notifier.Notify(rec.VisitDate)
	}
	return nil
}

// timesPatch は変更した時刻、再計算した利用時間、現在の理由を保存対象にします。
func (s *Service) timesPatch(item attendance.Data, kind attendance.TimeKind) model.VisitRecordPatch {
	patch := model.VisitRecordPatch{EarlyLeaveReasonCode: nullText(item.Reason)}
	switch kind {
	case attendance.KindArrival:
		patch.ActualArrivalTime = nullText(attendance.ClockText(item.ArrivalTime, s.loc))
	case attendance.KindDeparture:
		patch.ActualLeaveTime = nullText(attendance.ClockText(item.DepartureTime, s.loc))
	}
	if m, ok := item.UsageMinutes(); ok {
		patch.ActualDuration = &sql.NullInt64{Int64: int64(m), Valid: true}
	} else {
		patch.ActualDuration = &sql.NullInt64{}
	}
	return patch
}

// update は保存してから、確定した行を表示用データにして返します。失敗時は何も通知しません。
func (s *Service) update(ctx context.Context, op, id string, patch model.VisitRecordPatch, by string, baseVersion *int) (attendance.Data, error) {
	at := s.now().Format(time.RFC3339)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return attendance.Data{}, fmt.Errorf("%s (ID: %s): failed to begin transaction: %w", op, id, err)
	}
	defer tx.Rollback()

	if err := database.UpdateVisitRecord(ctx, tx, id, patch, by, at, baseVersion); err != nil {
		return attendance.Data{}, err
	}
	rec, err := database.GetVisitRecordByID(ctx, tx, id)
	if err != nil {
		return attendance.Data{}, err
	}
	if err := tx.Commit(); err != nil {
		return attendance.Data{}, fmt.Errorf("%s (ID: %s): failed to commit: %w", op, id, err)
	}

	s.logger.WithFields(logrus.Fields{
		"op":        op,
		"recordId":  id,
		"visitDate": rec.VisitDate,
		"version":   rec.Version,
	}).Debug("visit record updated")

	if s.notifier != nil {
		s.notifier.Notify(rec.VisitDate)
	}
	return s.present(ctx, rec)
}

func nullText(s string) *sql.NullString {
	if s == "" {
		return &sql.NullString{}
	}
	return &sql.NullString{String: s, Valid: true}
}
