package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON 编码 payload 后再写状态码，编码失败时返回 500 而不是半截响应。
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[http] encode response failed: %v", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.Printf("[http] write response failed: %v", err)
	}
}

// RespondError 以 {"error": message} 形式返回错误
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}
