// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\routes.go
package main

import (
	"net/http"
	"os"
	"path/filepath"
	"tsusho/auth"
	"tsusho/automation"
	"tsusho/child"
	"tsusho/codes"
	"tsusho/config"
	"tsusho/feed"
	"tsusho/loader"
	"tsusho/reception"
	"tsusho/render"
	"tsusho/report"
	"tsusho/scanner"
	"tsusho/schedule"
	"tsusho/visit"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// App はルーティングに必要な依存をまとめたものです。
type App struct {
	DB        *sqlx.DB
	Configs   *config.Manager
	Auth      *auth.Service
	Codes     *codes.Table
	Hub       *feed.Hub
	Visits    *visit.Service
	Generator *schedule.Generator
	Desk      *reception.Desk
	Printer   automation.Printer
	Logger    *logrus.Logger
}

func SetupRoutes(mux *http.ServeMux, app *App) {
	cfg := app.Configs.Get()
	logger := app.Logger
	db := app.DB
	if app.Printer == nil {
		app.Printer = automation.RodPrinter{}
	}

	// セッション不要
	mux.HandleFunc("/api/auth/login", auth.LoginHandler(app.Auth))
	mux.HandleFunc("/api/auth/logout", auth.LogoutHandler())

	mux.Handle("/static/", http.StripPrefix("/static/",
		http.FileServer(http.Dir("./static"))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		index := filepath.Join("static", "index.html")
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})

	// 以降はすべてログインが必要
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, app.Auth.RequireSessionFunc(h))
	}

	handle("/api/attendance", visit.ListHandler(app.Visits, logger))
	handle("/api/attendance/arrival", visit.ArrivalHandler(app.Visits, logger))
	handle("/api/attendance/departure", visit.DepartureHandler(app.Visits, logger))
	handle("/api/attendance/edit_time", visit.EditTimeHandler(app.Visits, logger))
	handle("/api/attendance/reset_time", visit.ResetTimeHandler(app.Visits, logger))
	handle("/api/attendance/reason", visit.ReasonHandler(app.Visits, logger))
	handle("/api/attendance/note", visit.NoteHandler(app.Visits, logger))
	handle("/api/attendance/delete", visit.DeleteHandler(app.Visits, logger))
	handle("/ws/attendance", feed.Handler(app.Visits, app.Hub, app.Visits.Location(), cfg.PollInterval(), logger))

	scanOpts := scanner.Options{
		Quiet:     cfg.ScanQuiet(),
		MaxLength: cfg.ScanMaxLength,
		Reversed:  cfg.ScannerReversed,
	}
	handle("/api/reception/scan", reception.ScanHandler(app.Desk, logger))
	handle("/api/reception/confirm", reception.ConfirmHandler(app.Desk, logger))
	handle("/ws/reception", reception.WSHandler(app.Desk, scanOpts, logger))

	handle("/api/codes", ListCodesHandler(app.Codes))
	handle("/api/codes/create", CreateCodeHandler(db, app.Codes, logger))
	handle("/api/codes/delete/", DeleteCodeHandler(db, app.Codes, logger))

	handle("/api/children", child.ListChildrenHandler(db, logger))
	handle("/api/children/create", child.CreateChildHandler(db, logger))
	handle("/api/children/delete/", child.DeleteChildHandler(db, logger))
	handle("/api/children/import", child.ImportChildrenHandler(db, logger))
	handle("/api/schedules/import", child.ImportSchedulesHandler(db, logger))

	reloadMasters := loader.ReloadMastersHandler(db, souDir, logger)
	handle("/api/masters/reload", func(w http.ResponseWriter, r *http.Request) {
		reloadMasters(w, r)
		// 理由コードも SOU から入るので表を読み直す
		if err := app.Codes.Load(r.Context(), db); err != nil {
			logger.Warnf("code table reload failed: %v", err)
		}
	})

	handle("/api/schedule/generate", schedule.GenerateHandler(app.Generator, logger))
	handle("/api/dev/seed", schedule.SeedHandler(app.Generator, logger))

	handle("/api/report/daily.csv", report.DailyCSVHandler(app.Visits, app.Codes, logger))
	handle("/api/report/monthly.xlsx", report.MonthlyXLSXHandler(app.Visits, app.Codes, logger))
	handle("/report/daily", render.DailySheetHandler(app.Visits, app.Codes, cfg.OfficeID, logger))
	handle("/api/automation/daily_pdf", automation.DailyPDFHandler(app.Visits, app.Codes, app.Configs, app.Printer, logger))

	handle("/api/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			GetConfigHandler(app.Configs)(w, r)
		case http.MethodPost:
			SaveConfigHandler(app.Configs, logger)(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
}
