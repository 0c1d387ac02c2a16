package attendance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"tsusho/model"
)

// Fingerprint は取得した実績一覧の内容ハッシュです。同じ内容なら同じ値になります。
func Fingerprint(records []model.VisitRecord) string {
	raw, err := json.Marshal(records)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
