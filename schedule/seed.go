package schedule

import (
	"context"
	"fmt"
	"time"
	"tsusho/database"
	"tsusho/model"
)

type demoChild struct {
	childID, lastName, firstName string
	planned                      string
	contracted                   int
}

// 開発・検証用の初期データ
var demoChildren = []demoChild{
	{"C001", "山田", "太郎", "16:00:00", 100},
	{"C002", "佐藤", "花子", "17:30:00", 100},
	{"C003", "鈴木", "一郎", "16:00:00", 100},
	{"C004", "田中", "美咲子", "16:00:00", 100},
}

// SeedResult は初期データ登録の件数です。
type SeedResult struct {
	Children int `json:"children"`
	Records  int `json:"records"`
}

// SeedDemo は見本の児童4名と、その当日の実績を登録します。
// 登録済みの児童・実績はスキップします。新規の児童には月〜金の予定も登録します。
func (g *Generator) SeedDemo(ctx context.Context) (SeedResult, error) {
	result := SeedResult{}
	today := g.Today()
	at := g.now().Format(time.RFC3339)

	existing, err := database.GetChildNameMap(ctx, g.db)
	if err != nil {
		return result, err
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("SeedDemo: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range demoChildren {
		if _, ok := existing[d.childID]; !ok {
			c := &model.Child{
				ChildID:   d.childID,
				LastName:  d.lastName,
				FirstName: d.firstName,
				CreatedAt: at,
				CreatedBy: "admin",
				UpdatedAt: at,
				UpdatedBy: "admin",
			}
			if err := database.CreateChildInTx(ctx, tx, c); err != nil {
				return result, err
			}
			for wd := time.Monday; wd <= time.Friday; wd++ {
				s := model.ChildSchedule{
					ChildID:            d.childID,
					Weekday:            int(wd),
					PlannedArrivalTime: d.planned,
					ContractedDuration: d.contracted,
				}
				if err := database.UpsertScheduleInTx(ctx, tx, s); err != nil {
					return result, err
				}
			}
			result.Children++
		}

		ok, err := database.InsertVisitRecordIfAbsent(ctx, tx, g.newRecord(today, d.childID, d.planned, d.contracted, "admin"))
		if err != nil {
			return result, err
		}
		if ok {
			result.Records++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("SeedDemo: failed to commit: %w", err)
	}
	g.logger.Infof("初期データ登録完了 (children: %d, records: %d)", result.Children, result.Records)

	if result.Records > 0 && g.notifier != nil {
		g.notifier.Notify(today)
	}
	return result, nil
}
