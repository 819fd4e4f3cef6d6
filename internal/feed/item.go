package feed

import (
	"fmt"
	"time"
)

// ActivityType classifies the origin of an activity item
type ActivityType string

const (
	ActivityTypeUser   ActivityType = "user"   // Console user action
	ActivityTypeSystem ActivityType = "system" // Background system event
	ActivityTypeAlert  ActivityType = "alert"  // Alert raised by monitoring
	ActivityTypeMetric ActivityType = "metric" // Metric threshold event
	ActivityTypeEvent  ActivityType = "event"  // Generic product event
)

// Severity is the four-level ordinal classification carried by alert items
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// IsValidActivityType checks if the given value is a valid ActivityType
func IsValidActivityType(t string) bool {
	switch ActivityType(t) {
	case ActivityTypeUser, ActivityTypeSystem, ActivityTypeAlert, ActivityTypeMetric, ActivityTypeEvent:
		return true
	default:
		return false
	}
}

// IsValidSeverity checks if the given value is a valid Severity
func IsValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

// IsAlerting reports whether the severity should trigger an alert side effect
func (s Severity) IsAlerting() bool {
	return s == SeverityError || s == SeverityCritical
}

// UserRef identifies the console user an activity originates from
type UserRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ResourceRef identifies the entity an activity concerns
type ResourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ActivityItem is the unit flowing through the feed pipeline
type ActivityItem struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Severity    Severity     `json:"severity,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	User        *UserRef     `json:"user,omitempty"`
	Resource    *ResourceRef `json:"resource,omitempty"`
	ActionURL   string       `json:"action_url,omitempty"`
	ActionLabel string       `json:"action_label,omitempty"`
	Read        bool         `json:"read"`
}

// Validate validates the activity item
func (a *ActivityItem) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if a.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidItem)
	}
	if !IsValidActivityType(string(a.Type)) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidItem, a.Type)
	}
	if a.Severity != "" && !IsValidSeverity(string(a.Severity)) {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidItem, a.Severity)
	}
	if a.Title == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidItem)
	}
	return nil
}
