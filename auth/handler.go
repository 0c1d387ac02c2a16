// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\auth\handler.go
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

type loginRequest struct {
	LoginID  string `json:"loginId" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginHandler はログインしてトークンを返し、Cookie にも設定します。
func LoginHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "リクエストが不正です。", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSONError(w, "ログインIDとパスワードは必須です。", http.StatusBadRequest)
			return
		}

		token, expires, err := s.Login(r.Context(), req.LoginID, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, ErrAccountLocked):
				writeJSONError(w, err.Error(), http.StatusLocked)
			case errors.Is(err, ErrInvalidCredentials):
				writeJSONError(w, err.Error(), http.StatusUnauthorized)
			default:
				s.logger.WithField("loginId", req.LoginID).Errorf("login failed: %v", err)
				writeJSONError(w, "ログイン処理に失敗しました。", http.StatusInternalServerError)
			}
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    token,
			Path:     "/",
			Expires:  expires,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":     token,
			"expiresAt": expires.Format(time.RFC3339),
			"loginId":   req.LoginID,
		})
	}
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ログアウトしました。"})
	}
}
