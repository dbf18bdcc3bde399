package tracker

import (
	"time"

	"eventflow/internal/model"
)

// DemoEvents is the fixed dataset used when the upstream cannot be reached
// and no other fallback source is configured.
func DemoEvents() []model.Event {
	return []model.Event{
		{
			Title:       "Project Launch Meeting",
			Description: "Final review and launch preparation for the new product release",
			Date:        model.NewDate(2025, time.August, 25),
		},
		{
			Title:       "Client Presentation",
			Description: "Present quarterly results and future roadmap to key stakeholders",
			Date:        model.NewDate(2025, time.September, 2),
		},
		{
			Title:       "Team Building Workshop",
			Description: "Interactive workshop to improve team collaboration and communication",
			Date:        model.NewDate(2025, time.August, 22),
			IsCompleted: true,
		},
		{
			Title:       "Product Demo",
			Description: "Live demonstration of new features to potential customers",
			Date:        model.NewDate(2025, time.September, 10),
		},
		{
			Title:       "Quarterly Review",
			Description: "Review team performance and set goals for next quarter",
			Date:        model.NewDate(2025, time.August, 18),
			IsCompleted: true,
		},
	}
}
