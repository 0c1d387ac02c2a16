// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\config_handler.go
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"tsusho/config"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// ヘルパー関数: エラーをJSONで返す
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// GetConfigHandler は現在の設定を返します (秘密情報は含みません)
func GetConfigHandler(m *config.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Get())
	}
}

// SaveConfigHandler は設定を保存します。待受アドレス等は再起動後に反映されます。
func SaveConfigHandler(m *config.Manager, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			writeJSONError(w, "リクエストが不正です。", http.StatusBadRequest)
			return
		}

		// フォルダパスの検証 (PDF出力先)
		if err := validateFolderPath(newCfg.ReportFolderPath, logger); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if newCfg.TimeZone != "" {
			if _, err := newCfg.Location(); err != nil {
				writeJSONError(w, "タイムゾーンが不正です: "+newCfg.TimeZone, http.StatusBadRequest)
				return
			}
		}
		if newCfg.DailyGenerateCron != "" {
			if _, err := cron.ParseStandard(newCfg.DailyGenerateCron); err != nil {
				writeJSONError(w, "実績作成スケジュールの形式が不正です: "+newCfg.DailyGenerateCron, http.StatusBadRequest)
				return
			}
		}

		if err := m.Save(newCfg); err != nil {
			logger.Errorf("Error saving config: %v", err)
			writeJSONError(w, "設定の保存に失敗しました。", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "設定を保存しました。"})
	}
}

// フォルダパスを検証するヘルパー関数
func validateFolderPath(path string, logger *logrus.Logger) error {
	if path == "" {
		return nil // 空の場合は検証しない
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New("指定されたフォルダパスが見つかりません: " + path)
		}
		logger.Errorf("Error checking folder path: %v", err)
		return errors.New("フォルダパスの確認中にエラーが発生しました。")
	}
	if !info.IsDir() {
		return errors.New("指定されたパスはフォルダではありません: " + path)
	}
	return nil
}
