package httpservice

import (
	"encoding/json"
	"net/http"
)

// ResponseData 统一响应结构
type ResponseData struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// RespondJSON 按状态码发送 JSON 响应
func RespondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, ResponseData{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	})
}

// RespondSuccess 200 响应
func RespondSuccess(w http.ResponseWriter, data interface{}) {
	RespondJSON(w, http.StatusOK, data)
}

// RespondMessage 200 响应，附带说明文字
func RespondMessage(w http.ResponseWriter, data interface{}, message string) {
	writeJSON(w, http.StatusOK, ResponseData{Success: true, Data: data, Message: message})
}

// RespondError 错误响应
func RespondError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ResponseData{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
