// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\schedule\generator.go
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"tsusho/database"
	"tsusho/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Notifier は実績を作成した日付を受け取ります。
type Notifier interface {
	Notify(visitDate string)
}

// Generator は児童の利用予定 (曜日別) からその日の通所実績の枠を作ります。
type Generator struct {
	db       *sqlx.DB
	loc      *time.Location
	officeID string
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewGenerator(db *sqlx.DB, loc *time.Location, officeID string, notifier Notifier, logger *logrus.Logger) *Generator {
	return &Generator{db: db, loc: loc, officeID: officeID, notifier: notifier, logger: logger, now: time.Now}
}

// SetClock はテスト用に現在時刻の取得方法を差し替えます。
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Generator) Today() string {
	return g.now().In(g.loc).Format("2006-01-02")
}

// Generate は visitDate の曜日に予定がある児童ごとに1件の実績を作成します。
// 既に実績がある児童はスキップするため、何度実行しても結果は同じです。
func (g *Generator) Generate(ctx context.Context, visitDate string) (int, error) {
	day, err := time.ParseInLocation("2006-01-02", visitDate, g.loc)
	if err != nil {
		return 0, fmt.Errorf("Generate: invalid date %q: %w", visitDate, err)
	}
	schedules, err := database.GetSchedulesByWeekday(ctx, g.db, int(day.Weekday()))
	if err != nil {
		return 0, err
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("Generate: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	created := 0
	for _, s := range schedules {
		ok, err := database.InsertVisitRecordIfAbsent(ctx, tx, g.newRecord(visitDate, s.ChildID, s.PlannedArrivalTime, s.ContractedDuration, "system"))
		if err != nil {
			return 0, err
		}
		if ok {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("Generate: failed to commit: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"visitDate": visitDate,
		"scheduled": len(schedules),
		"created":   created,
	}).Info("visit records generated")

	if created > 0 && g.notifier != nil {
		g.notifier.Notify(visitDate)
	}
	return created, nil
}

func (g *Generator) newRecord(visitDate, childID, planned string, contracted int, by string) *model.VisitRecord {
	at := g.now().Format(time.RFC3339)
	rec := &model.VisitRecord{
		ID:                 uuid.NewString(),
		VisitDate:          visitDate,
		ChildID:            childID,
		PlannedArrivalTime: sql.NullString{String: planned, Valid: planned != ""},
		ContractedDuration: sql.NullInt64{Int64: int64(contracted), Valid: contracted > 0},
		CreatedAt:          at,
		CreatedBy:          by,
		UpdatedAt:          at,
		UpdatedBy:          by,
		Version:            1,
	}
	if g.officeID != "" {
		rec.OfficeID = sql.NullString{String: g.officeID, Valid: true}
	}
	return rec
}

// Start は spec (cron 形式) の時刻に当日分の実績を作成するジョブを登録して開始します。
// 戻り値の Stop で停止します。
func (g *Generator) Start(spec string) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(g.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		date := g.Today()
		if _, err := g.Generate(ctx, date); err != nil {
			g.logger.WithField("visitDate", date).Errorf("scheduled generation failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid dailyGenerateCron %q: %w", spec, err)
	}
	c.Start()
	g.logger.Infof("daily visit record generation scheduled (%s)", spec)
	return c, nil
}
