package types

// HealthSummary is the per-location inventory health snapshot rendered into
// the daily chat report: counts of good, soon-expiring, and expired batches.
type HealthSummary struct {
	Good    int `json:"good"`
	Warning int `json:"warning"`
	Expired int `json:"expired"`
}

// DepartmentStats is the richer statistics bundle delivered to a department's
// report inbox.
type DepartmentStats struct {
	TotalBatches     int `json:"total_batches"`
	ExpiringCount    int `json:"expiring_count"`
	ExpiredCount     int `json:"expired_count"`
	CollectionsToday int `json:"collections_today"`
}

// ReportResult counts deliveries performed by one daily report run.
type ReportResult struct {
	TelegramSent int `json:"telegram_sent"`
	EmailSent    int `json:"email_sent"`
}
