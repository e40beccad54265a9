package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/pkg/config"
	"github.com/yuqie6/NunuLog/internal/service"
)

// APIError 统一错误响应
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, e APIError) {
	if strings.TrimSpace(e.Error) == "" {
		e.Error = http.StatusText(status)
	}
	writeJSON(w, status, e)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeAPIError(w, status, APIError{Error: msg})
}

// writeServiceError 将领域错误映射为 HTTP 状态码
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, daterange.ErrInvalidDate):
		writeAPIError(w, http.StatusBadRequest, APIError{
			Error: err.Error(),
			Code:  "invalid_date",
			Hint:  "日期格式为 YYYY-MM-DD，且必须是真实存在的日期",
		})
	case errors.Is(err, daterange.ErrInvalidRange):
		writeAPIError(w, http.StatusBadRequest, APIError{
			Error: err.Error(),
			Code:  "invalid_range",
			Hint:  "from 不能晚于 to",
		})
	case errors.Is(err, service.ErrRangeTooLong):
		writeAPIError(w, http.StatusBadRequest, APIError{Error: err.Error(), Code: "range_too_long"})
	case errors.Is(err, service.ErrInvalidActivity), errors.Is(err, service.ErrInvalidBaby):
		writeAPIError(w, http.StatusBadRequest, APIError{Error: err.Error(), Code: "invalid_argument"})
	case errors.Is(err, service.ErrBabyNotFound), errors.Is(err, service.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, APIError{Error: err.Error(), Code: "not_found"})
	default:
		slog.Error("请求处理失败", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
		writeAPIError(w, http.StatusInternalServerError, APIError{Error: err.Error(), Code: "internal"})
	}
}

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func parseInt64Param(value string) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("参数为空")
	}
	return strconv.ParseInt(v, 10, 64)
}

// parseTZParam 解析 tz（getTimezoneOffset 编码）；为空时使用默认值
func parseTZParam(value string, def int) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("tz 必须是整数分钟: %w", err)
	}
	if n < -config.MaxTZOffset || n > config.MaxTZOffset {
		return 0, fmt.Errorf("tz=%d 超出范围 [-%d, %d]", n, config.MaxTZOffset, config.MaxTZOffset)
	}
	return n, nil
}
