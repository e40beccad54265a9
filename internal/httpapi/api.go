package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/yuqie6/NunuLog/internal/bootstrap"
	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/dto"
	"github.com/yuqie6/NunuLog/internal/eventbus"
	"github.com/yuqie6/NunuLog/internal/pkg/buildinfo"
	"github.com/yuqie6/NunuLog/internal/repository"
	"github.com/yuqie6/NunuLog/internal/schema"
	"github.com/yuqie6/NunuLog/internal/service"
)

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

type apiServer struct {
	core      *bootstrap.Core
	startTime time.Time
}

func newAPI(core *bootstrap.Core) *apiServer {
	return &apiServer{
		core:      core,
		startTime: time.Now(),
	}
}

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/range/day", a.wrapGET(a.getDayRange))
	mux.HandleFunc("/api/range/span", a.wrapGET(a.getSpanRange))

	mux.HandleFunc("/api/babies", a.wrapMethods(map[string]http.HandlerFunc{
		http.MethodGet:  a.listBabies,
		http.MethodPost: a.createBaby,
	}))

	mux.HandleFunc("/api/activities", a.wrapMethods(map[string]http.HandlerFunc{
		http.MethodGet:    a.listActivities,
		http.MethodPost:   a.createActivity,
		http.MethodDelete: a.deleteActivity,
	}))
	mux.HandleFunc("/api/activities/last", a.wrapGET(a.getLastActivities))

	mux.HandleFunc("/api/stats/daily", a.wrapGET(a.getDailyStats))
	mux.HandleFunc("/api/stats/range", a.wrapGET(a.getRangeStats))
	mux.HandleFunc("/api/stats/recent", a.wrapGET(a.getRecentStats))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// wrapMethods 按请求方法分发；未注册的方法返回 405 并带上 Allow 头
func (a *apiServer) wrapMethods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for m := range handlers {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		fn, ok := handlers[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// requireWritableDB 安全模式下拒绝写操作
func (a *apiServer) requireWritableDB(w http.ResponseWriter) bool {
	if a.core.DB == nil {
		writeAPIError(w, http.StatusServiceUnavailable, APIError{
			Error: "数据库未初始化",
			Code:  "db_not_ready",
		})
		return false
	}
	if a.core.DB.SafeMode {
		writeAPIError(w, http.StatusServiceUnavailable, APIError{
			Error: "数据库处于安全模式，已禁用写入操作",
			Code:  "db_safe_mode",
			Hint:  "请查看 /api/status 中的原因；修复后重启服务",
		})
		return false
	}
	return true
}

func (a *apiServer) tz(w http.ResponseWriter, r *http.Request) (int, bool) {
	tz, err := parseTZParam(r.URL.Query().Get("tz"), a.core.Cfg.App.DefaultTZOffset)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, APIError{
			Error: err.Error(),
			Code:  "invalid_tz",
			Hint:  "tz 为浏览器 getTimezoneOffset() 的返回值，例如 UTC+8 传 -480",
		})
		return 0, false
	}
	return tz, true
}

func (a *apiServer) babyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseInt64Param(r.URL.Query().Get("baby_id"))
	if err != nil || id <= 0 {
		writeAPIError(w, http.StatusBadRequest, APIError{Error: "baby_id 无效", Code: "invalid_baby_id"})
		return 0, false
	}
	return id, true
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       a.core.Cfg.App.Name,
		"version":    a.core.Cfg.App.Version,
		"started_at": a.startTime.Format(time.RFC3339),
	})
}

func (a *apiServer) getStatus(w http.ResponseWriter, r *http.Request) {
	st := dto.StatusDTO{
		App: dto.AppStatusDTO{
			Name:       a.core.Cfg.App.Name,
			Version:    buildinfo.Version,
			Commit:     buildinfo.Commit,
			StartedAt:  a.startTime.Format(time.RFC3339),
			UptimeSec:  int64(time.Since(a.startTime).Seconds()),
			TZOffset:   a.core.Cfg.App.DefaultTZOffset,
			ConfigPath: a.core.CfgPath,
		},
	}
	if a.core.LogErr != nil {
		st.App.LogError = a.core.LogErr.Error()
	}
	st.App.Subscribers, st.App.DroppedEvents = a.core.Hub.Stats()
	if db := a.core.DB; db != nil {
		st.App.SafeMode = db.SafeMode
		st.Storage = dto.StorageStatusDTO{
			Driver:         db.Driver,
			SchemaVersion:  db.SchemaVersion,
			SafeModeReason: db.MigrationError,
		}
		if !db.SafeMode {
			if n, err := a.core.Repos.Activity.Count(r.Context()); err == nil {
				st.Storage.ActivityCount = n
			}
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *apiServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "stream not supported")
		return
	}

	// baby_id 可选，用于只接收某个宝宝的事件
	var babyID int64
	if v := r.URL.Query().Get("baby_id"); v != "" {
		id, err := parseInt64Param(v)
		if err != nil || id < 0 {
			writeAPIError(w, http.StatusBadRequest, APIError{Error: "baby_id 无效", Code: "invalid_baby_id"})
			return
		}
		babyID = id
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	sub := a.core.Hub.Subscribe(ctx, eventbus.SubscribeOptions{Buffer: 32, BabyID: babyID})

	// initial event
	_, _ = io.WriteString(w, "event: ready\n")
	_, _ = io.WriteString(w, "data: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, "event: ping\n")
			_, _ = io.WriteString(w, "data: {}\n\n")
			flusher.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			_, _ = io.WriteString(w, "event: "+sanitizeSSEName(evt.Type)+"\n")
			_, _ = io.WriteString(w, "data: ")
			_, _ = w.Write(b)
			_, _ = io.WriteString(w, "\n\n")
			flusher.Flush()
		}
	}
}

func sanitizeSSEName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "message"
	}
	n = strings.ReplaceAll(n, "\n", "")
	n = strings.ReplaceAll(n, "\r", "")
	return n
}

// ========== 日期区间 ==========

func (a *apiServer) getDayRange(w http.ResponseWriter, r *http.Request) {
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	rng, err := daterange.ResolveDayString(date, tz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DayRangeDTO{Date: date, TZOffset: tz, Range: toRangeDTO(rng)})
}

func (a *apiServer) getSpanRange(w http.ResponseWriter, r *http.Request) {
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	rng, err := daterange.ResolveRangeString(from, to, tz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SpanRangeDTO{From: from, To: to, TZOffset: tz, Range: toRangeDTO(rng)})
}

// ========== 宝宝档案 ==========

func (a *apiServer) listBabies(w http.ResponseWriter, r *http.Request) {
	list, err := a.core.Services.Activities.ListBabies(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]dto.BabyDTO, len(list))
	for i, b := range list {
		out[i] = dto.BabyDTO{ID: b.ID, Name: b.Name, BirthDate: b.BirthDate}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) createBaby(w http.ResponseWriter, r *http.Request) {
	if !a.requireWritableDB(w) {
		return
	}
	var req dto.CreateBabyRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体格式错误: "+err.Error())
		return
	}
	b, err := a.core.Services.Activities.CreateBaby(r.Context(), req.Name, req.BirthDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.BabyDTO{ID: b.ID, Name: b.Name, BirthDate: b.BirthDate})
}

// ========== 活动 ==========

func (a *apiServer) listActivities(w http.ResponseWriter, r *http.Request) {
	babyID, ok := a.babyID(w, r)
	if !ok {
		return
	}
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = daterange.Today(time.Now(), tz).String()
	}

	list, rng, err := a.core.Services.Activities.ListByDate(r.Context(), babyID, date, tz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]dto.ActivityDTO, len(list))
	for i := range list {
		out[i] = toActivityDTO(&list[i], tz)
	}
	writeJSON(w, http.StatusOK, dto.ActivitiesByDateDTO{
		Date:       date,
		TZOffset:   tz,
		Range:      toRangeDTO(rng),
		Activities: out,
	})
}

func (a *apiServer) createActivity(w http.ResponseWriter, r *http.Request) {
	if !a.requireWritableDB(w) {
		return
	}
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	var req dto.CreateActivityRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体格式错误: "+err.Error())
		return
	}
	act, err := a.core.Services.Activities.Record(r.Context(), service.RecordInput{
		BabyID:    req.BabyID,
		Type:      req.Type,
		StartedAt: req.StartedAt,
		EndedAt:   req.EndedAt,
		AmountML:  req.AmountML,
		Side:      req.Side,
		Note:      req.Note,
		Tags:      req.Tags,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(act, tz))
}

func (a *apiServer) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if !a.requireWritableDB(w) {
		return
	}
	id, err := parseInt64Param(r.URL.Query().Get("id"))
	if err != nil || id <= 0 {
		writeAPIError(w, http.StatusBadRequest, APIError{Error: "id 无效", Code: "invalid_id"})
		return
	}
	if err := a.core.Services.Activities.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) getLastActivities(w http.ResponseWriter, r *http.Request) {
	babyID, ok := a.babyID(w, r)
	if !ok {
		return
	}
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	last, err := a.core.Services.Activities.LastByType(r.Context(), babyID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]dto.LastActivityDTO, len(last))
	for i, l := range last {
		out[i] = dto.LastActivityDTO{
			Type:     l.Type,
			SinceSec: int64(l.Since.Seconds()),
			Since:    service.FormatDuration(l.Since),
			Activity: toActivityDTO(l.Activity, tz),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ========== 统计 ==========

func (a *apiServer) getDailyStats(w http.ResponseWriter, r *http.Request) {
	babyID, ok := a.babyID(w, r)
	if !ok {
		return
	}
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = daterange.Today(time.Now(), tz).String()
	}
	st, err := a.core.Services.Stats.GetDailyStats(r.Context(), babyID, date, tz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyStatsDTO(*st))
}

func (a *apiServer) getRangeStats(w http.ResponseWriter, r *http.Request) {
	babyID, ok := a.babyID(w, r)
	if !ok {
		return
	}
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rs, err := a.core.Services.Stats.GetRangeStats(r.Context(), babyID, strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")), tz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRangeStatsDTO(rs, tz))
}

func (a *apiServer) getRecentStats(w http.ResponseWriter, r *http.Request) {
	babyID, ok := a.babyID(w, r)
	if !ok {
		return
	}
	tz, ok := a.tz(w, r)
	if !ok {
		return
	}
	days := 7
	if s := strings.TrimSpace(r.URL.Query().Get("days")); s != "" {
		if n, err := parseInt64Param(s); err == nil && (n == 7 || n == 30) {
			days = int(n)
		}
	}
	rs, err := a.core.Services.Stats.GetRecentStats(r.Context(), babyID, days, tz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRangeStatsDTO(rs, tz))
}

// ========== 转换 ==========

func toRangeDTO(r daterange.UTCRange) dto.UTCRangeDTO {
	return dto.UTCRangeDTO{
		Start:   r.Start.UTC().Format(rfc3339Milli),
		End:     r.End.UTC().Format(rfc3339Milli),
		StartMs: r.StartMs(),
		EndMs:   r.EndMs(),
	}
}

func toActivityDTO(a *schema.Activity, tz int) dto.ActivityDTO {
	tags := schema.GetStringSlice(a.Metadata, "tags")
	if tags == nil {
		tags = []string{}
	}
	return dto.ActivityDTO{
		ID:        a.ID,
		UID:       a.UID,
		BabyID:    a.BabyID,
		Type:      a.Type,
		StartedAt: a.StartedAt,
		EndedAt:   a.EndedAt,
		TimeRange: service.FormatClockRange(a.StartedAt, a.EndedAt, tz),
		Duration:  a.Duration().Milliseconds(),
		AmountML:  a.AmountML,
		Side:      a.Side,
		Note:      a.Note,
		Tags:      tags,
	}
}

func toTypeStatDTOs(stats []repository.TypeStat) []dto.TypeStatDTO {
	out := make([]dto.TypeStatDTO, len(stats))
	for i, s := range stats {
		out[i] = dto.TypeStatDTO{
			Type:          s.Type,
			Count:         s.Count,
			TotalDuration: s.TotalDuration,
			TotalAmountML: s.TotalAmountML,
		}
	}
	return out
}

func toDailyStatsDTO(st service.DailyStats) dto.DailyStatsDTO {
	return dto.DailyStatsDTO{
		Date:  st.Date,
		Range: toRangeDTO(st.Range),
		Total: st.Total,
		Types: toTypeStatDTOs(st.Types),
	}
}

func toRangeStatsDTO(rs *service.RangeStats, tz int) dto.RangeStatsDTO {
	days := make([]dto.DailyStatsDTO, len(rs.Days))
	for i, d := range rs.Days {
		days[i] = toDailyStatsDTO(d)
	}
	avg := make(map[string]float64, len(rs.Totals))
	for _, t := range rs.Totals {
		avg[t.Type] = rs.AvgPerDay(t.Type)
	}
	return dto.RangeStatsDTO{
		From:      rs.From,
		To:        rs.To,
		TZOffset:  tz,
		Range:     toRangeDTO(rs.Range),
		DayCount:  rs.DayCount,
		Totals:    toTypeStatDTOs(rs.Totals),
		AvgPerDay: avg,
		Days:      days,
	}
}
