package storage

import "time"

// PlanSnapshot stores the serialized rate structures most recently fetched
// from a tariff source. The payload is the JSON-encoded plan list exactly as
// the source produced it, so the catalog can be rehydrated without the source
// being reachable.
type PlanSnapshot struct {
	ID        uint      `json:"-" gorm:"primaryKey;column:id"`
	Source    string    `json:"source" gorm:"column:source"`
	Payload   []byte    `json:"payload" gorm:"column:payload"`
	FetchedAt time.Time `json:"fetched_at" gorm:"column:fetched_at"`
}

// SimulationRun stores the full result payload of a completed simulation so
// it can be retrieved later by ID.
type SimulationRun struct {
	ID         string    `json:"id" gorm:"primaryKey;column:id"`
	StartMonth string    `json:"start_month" gorm:"column:start_month"`
	Months     int       `json:"months" gorm:"column:months"`
	Scenarios  int       `json:"scenarios" gorm:"column:scenarios"`
	Payload    []byte    `json:"payload" gorm:"column:payload"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
}

// Setting is a key/value row for small pieces of operational state, such as
// the timestamp of the last successful tariff refresh.
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;column:key"`
	Value     string    `json:"value" gorm:"column:value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// ScheduledJob records the most recent outcome of a background job.
type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error,omitempty" gorm:"column:last_error"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"` // For Sendgrid
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
