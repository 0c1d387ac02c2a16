// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\visit\handler.go
package visit

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"tsusho/attendance"
	"tsusho/auth"
	"tsusho/database"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// writeServiceError はエラーの種類に応じた HTTP ステータスで返します。
func writeServiceError(w http.ResponseWriter, logger *logrus.Logger, op, id string, err error) {
	switch {
	case errors.Is(err, attendance.ErrInvalidTimeFormat), errors.Is(err, attendance.ErrDepartureBeforeArrival):
		writeJSONError(w, userMessage(err), http.StatusBadRequest)
	case errors.Is(err, database.ErrRecordNotFound):
		logger.WithFields(logrus.Fields{"op": op, "recordId": id}).Warnf("record not found: %v", err)
		writeJSONError(w, "通所実績が見つかりません。", http.StatusNotFound)
	case errors.Is(err, database.ErrVersionConflict):
		writeJSONError(w, "他の端末で更新されています。画面を更新してください。", http.StatusConflict)
	case errors.Is(err, attendance.ErrNotArrived):
		writeJSONError(w, attendance.ErrNotArrived.Error(), http.StatusConflict)
	default:
		logger.WithFields(logrus.Fields{"op": op, "recordId": id}).Errorf("update failed: %v", err)
		writeJSONError(w, "保存に失敗しました。", http.StatusInternalServerError)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, attendance.ErrInvalidTimeFormat):
		return attendance.ErrInvalidTimeFormat.Error()
	case errors.Is(err, attendance.ErrDepartureBeforeArrival):
		return attendance.ErrDepartureBeforeArrival.Error()
	}
	return err.Error()
}

func writeData(w http.ResponseWriter, item attendance.Data) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(attendance.Present([]attendance.Data{item})[0])
}

// ListResponse は一覧取得の応答です。
type ListResponse struct {
	Date        string                `json:"date"`
	Fingerprint string                `json:"fingerprint"`
	Sort        attendance.SortConfig `json:"sort"`
	Rows        []attendance.Row      `json:"rows"`
}

// ListHandler は指定日の一覧を返します。ETag に内容ハッシュを入れ、
// If-None-Match が一致する場合は 304 を返します (定期取得用)。
func ListHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		date := q.Get("date")
		if date == "" {
			date = s.Today()
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeJSONError(w, "日付は YYYY-MM-DD 形式で指定してください。", http.StatusBadRequest)
			return
		}

		cfg := attendance.SortConfig{}
		if col := q.Get("sort"); col != "" {
			c, err := attendance.ParseSortColumn(col)
			if err != nil {
				writeJSONError(w, "並び替え列が不正です。", http.StatusBadRequest)
				return
			}
			cfg = attendance.SortConfig{Column: c, Direction: attendance.Asc}
			if q.Get("dir") == string(attendance.Desc) {
				cfg.Direction = attendance.Desc
			}
		}

		records, names, err := s.Snapshot(r.Context(), date)
		if err != nil {
			logger.WithField("visitDate", date).Errorf("Error listing visit records: %v", err)
			writeJSONError(w, "通所実績の取得に失敗しました。", http.StatusInternalServerError)
			return
		}
		fp := attendance.Fingerprint(records)
		etag := `"` + fp + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		items := make([]attendance.Data, 0, len(records))
		for _, rec := range records {
			items = append(items, attendance.TransformRecord(rec, names, s.Location()))
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ListResponse{
			Date:        date,
			Fingerprint: fp,
			Sort:        cfg,
			Rows:        attendance.Present(attendance.Sorted(items, cfg)),
		})
	}
}

type recordRequest struct {
	ID          string `json:"id" validate:"required"`
	BaseVersion *int   `json:"baseVersion" validate:"omitempty,min=1"`
}

type editTimeRequest struct {
	ID          string `json:"id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=arrival departure"`
	Value       string `json:"value" validate:"required"`
	BaseVersion *int   `json:"baseVersion" validate:"omitempty,min=1"`
}

type resetTimeRequest struct {
	ID          string `json:"id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=arrival departure"`
	BaseVersion *int   `json:"baseVersion" validate:"omitempty,min=1"`
}

type reasonRequest struct {
	ID          string `json:"id" validate:"required"`
	Code        string `json:"code" validate:"max=20"`
	BaseVersion *int   `json:"baseVersion" validate:"omitempty,min=1"`
}

type noteRequest struct {
	ID          string `json:"id" validate:"required"`
	Text        string `json:"text" validate:"max=1000"`
	BaseVersion *int   `json:"baseVersion" validate:"omitempty,min=1"`
}

// decode は POST の JSON を読み、検証します。失敗時は応答を書いて false を返します。
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, "リクエストが不正です。", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeJSONError(w, "入力内容が不正です: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func ArrivalHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordRequest
		if !decode(w, r, &req) {
			return
		}
		item, err := s.RecordArrival(r.Context(), req.ID, s.Now(), auth.Actor(r.Context()), req.BaseVersion)
		if err != nil {
			writeServiceError(w, logger, "RecordArrival", req.ID, err)
			return
		}
		writeData(w, item)
	}
}

func DepartureHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordRequest
		if !decode(w, r, &req) {
			return
		}
		item, err := s.RecordDeparture(r.Context(), req.ID, s.Now(), auth.Actor(r.Context()), req.BaseVersion)
		if err != nil {
			writeServiceError(w, logger, "RecordDeparture", req.ID, err)
			return
		}
		writeData(w, item)
	}
}

func EditTimeHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editTimeRequest
		if !decode(w, r, &req) {
			return
		}
		target, err := attendance.NewEditTarget(attendance.TimeKind(req.Kind), req.ID, req.Value)
		if err != nil {
			writeJSONError(w, "種別が不正です。", http.StatusBadRequest)
			return
		}
		item, err := s.SaveEditedTime(r.Context(), target, auth.Actor(r.Context()), req.BaseVersion)
		if err != nil {
			writeServiceError(w, logger, "SaveEditedTime", req.ID, err)
			return
		}
		writeData(w, item)
	}
}

func ResetTimeHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetTimeRequest
		if !decode(w, r, &req) {
			return
		}
		kind, err := attendance.ParseTimeKind(req.Kind)
		if err != nil {
			writeJSONError(w, "種別が不正です。", http.StatusBadRequest)
			return
		}
		item, err := s.ResetTime(r.Context(), req.ID, kind, auth.Actor(r.Context()), req.BaseVersion)
		if err != nil {
			writeServiceError(w, logger, "ResetTime", req.ID, err)
			return
		}
		writeData(w, item)
	}
}

func ReasonHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reasonRequest
		if !decode(w, r, &req) {
			return
		}
		item, err := s.UpdateReason(r.Context(), req.ID, req.Code, auth.Actor(r.Context()), req.BaseVersion)
		if err != nil {
			writeServiceError(w, logger, "UpdateReason", req.ID, err)
			return
		}
		writeData(w, item)
	}
}

func NoteHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req noteRequest
		if !decode(w, r, &req) {
			return
		}
		item, err := s.SaveNote(r.Context(), req.ID, req.Text, auth.Actor(r.Context()), req.BaseVersion)
		if err != nil {
			writeServiceError(w, logger, "SaveNote", req.ID, err)
			return
		}
		writeData(w, item)
	}
}

// DeleteHandler は実績を削除済みにします (予定の取り消し)。
func DeleteHandler(s *Service, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordRequest
		if !decode(w, r, &req) {
			return
		}
		if err := s.Delete(r.Context(), req.ID, auth.Actor(r.Context())); err != nil {
			writeServiceError(w, logger, "Delete", req.ID, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "削除しました。"})
	}
}
