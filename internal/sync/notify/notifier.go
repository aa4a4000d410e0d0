package notify

import "context"

// AlertMessage represents a cycle alert.
type AlertMessage struct {
	RunID     string            `json:"run_id"`
	Reason    string            `json:"reason"`
	Stations  int               `json:"stations"`
	Trips     int               `json:"trips"`
	Failed    int               `json:"failed"`
	Duration  string            `json:"duration"`
	ReportURL string            `json:"report_url"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}
