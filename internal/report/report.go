package report

import (
	"time"

	"go.uber.org/zap"

	"replypilot/internal/models"
)

// PartitionScanner is the read-only slice of the lifecycle store the
// reporter consumes.
type PartitionScanner interface {
	Scan(status models.Status) ([]models.Comment, []string, error)
}

// Summary aggregates the lifecycle store contents. Read-only; corrupt
// records are counted separately and excluded from every other figure.
type Summary struct {
	ByStatus        map[models.Status]int `json:"by_status"`
	ByInfluencer    map[string]int        `json:"by_influencer"`
	RecentPublishes int                   `json:"recent_publishes"`
	CorruptRecords  int                   `json:"corrupt_records"`
	Total           int                   `json:"total"`
}

// Summarize walks every partition once and counts comments by status and
// influencer, plus publishes within the trailing window.
func Summarize(scanner PartitionScanner, window time.Duration, now time.Time, logger *zap.Logger) (*Summary, error) {
	summary := &Summary{
		ByStatus:     make(map[models.Status]int),
		ByInfluencer: make(map[string]int),
	}

	cutoff := now.Add(-window)

	for _, status := range models.AllStatuses {
		comments, corrupt, err := scanner.Scan(status)
		if err != nil {
			return nil, err
		}

		for _, path := range corrupt {
			logger.Error("Corrupt comment record excluded from report",
				zap.String("path", path),
				zap.String("partition", string(status)))
		}
		summary.CorruptRecords += len(corrupt)

		summary.ByStatus[status] = len(comments)
		summary.Total += len(comments)

		for _, c := range comments {
			handle := c.AuthorHandle
			if handle == "" {
				handle = c.AuthorID
			}
			summary.ByInfluencer[handle]++

			if status == models.StatusPublished && c.PublishedAt != nil && c.PublishedAt.After(cutoff) {
				summary.RecentPublishes++
			}
		}
	}

	return summary, nil
}
