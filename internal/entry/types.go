package entry

import (
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
)

// Source records how an entry was created.
type Source string

// Entry sources.
const (
	SourceAPI    Source = "api"
	SourceConfig Source = "config"
)

// Entry is one configured station.
type Entry struct {
	ID           string    `json:"id"`
	UniqueID     string    `json:"unique_id"`
	Title        string    `json:"title"`
	Host         string    `json:"host"`
	Name         string    `json:"name"`
	ScanInterval int       `json:"scan_interval"` // seconds
	Source       Source    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Interval returns the polling interval as a Duration.
func (e Entry) Interval() time.Duration {
	return time.Duration(e.ScanInterval) * time.Second
}

// Input is the user-supplied part of an entry.
type Input struct {
	Host         string `json:"host" validate:"required,hostname_rfc1123|ip|hostname_port"`
	Name         string `json:"name" validate:"max=100"`
	ScanInterval int    `json:"scan_interval" validate:"omitempty,min=10,max=3600"`
}

// Normalize trims fields and fills the defaults for name and interval.
func (in Input) Normalize() Input {
	in.Host = strings.TrimSpace(in.Host)
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = config.DefaultStationName
	}
	if in.ScanInterval == 0 {
		in.ScanInterval = config.DefaultScanInterval
	}
	return in
}

// Options are the settings adjustable after setup.
type Options struct {
	ScanInterval int `json:"scan_interval" validate:"required,min=10,max=3600"`
}
