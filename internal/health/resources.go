package health

import "github.com/nmiskell11/reframe-app/internal/models"

var (
	hotlineResource = models.SafetyResource{
		Name:        "National Domestic Violence Hotline",
		Contact:     "1-800-799-7233 (text START to 88788)",
		URL:         "https://www.thehotline.org",
		Description: "Free, confidential support around the clock for anyone experiencing controlling or abusive behavior.",
	}
	loveIsRespectResource = models.SafetyResource{
		Name:        "love is respect",
		Contact:     "Text LOVEIS to 22522",
		URL:         "https://www.loveisrespect.org",
		Description: "Support for teens and young adults with questions about dating relationships.",
	}
	childhelpResource = models.SafetyResource{
		Name:        "Childhelp National Child Abuse Hotline",
		Contact:     "1-800-422-4453",
		URL:         "https://www.childhelphotline.org",
		Description: "Crisis counselors for children, teens and concerned adults.",
	}
)

// SafetyResources returns outside support resources for health results that
// warrant them. Relationship-choice concerns (other_person) get none.
func SafetyResources(result *models.HealthCheckResult) []models.SafetyResource {
	if result == nil {
		return nil
	}
	switch result.Type {
	case models.HealthCheckControlling:
		return []models.SafetyResource{hotlineResource, loveIsRespectResource}
	case models.HealthCheckAgeConcern:
		return []models.SafetyResource{childhelpResource, loveIsRespectResource}
	default:
		return nil
	}
}
