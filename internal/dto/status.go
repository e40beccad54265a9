package dto

type StatusDTO struct {
	App     AppStatusDTO     `json:"app"`
	Storage StorageStatusDTO `json:"storage"`
}

type AppStatusDTO struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	SafeMode   bool   `json:"safe_mode"`
	TZOffset   int    `json:"default_tz"`
	ConfigPath string `json:"config_path,omitempty"`
	LogError   string `json:"log_error,omitempty"`

	Subscribers   int    `json:"sse_subscribers"`
	DroppedEvents uint64 `json:"sse_dropped_events"`
}

type StorageStatusDTO struct {
	Driver         string `json:"driver"`
	SchemaVersion  int    `json:"schema_version"`
	ActivityCount  int64  `json:"activity_count"`
	SafeModeReason string `json:"safe_mode_reason,omitempty"`
}
