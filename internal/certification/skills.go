package certification

import "github.com/filmforge/academy/internal/catalog"

var skillsByCategory = map[string][]string{
	catalog.CategoryPreProduction:  {"Script Analysis", "Budgeting", "Scheduling", "Planning"},
	catalog.CategoryProduction:     {"Directing", "Cinematography", "On-Set Management", "Sound Recording"},
	catalog.CategoryPostProduction: {"Editing", "Color Grading", "Sound Design", "Visual Effects"},
	catalog.CategoryDistribution:   {"Festival Strategy", "Marketing", "Distribution Deals", "Audience Building"},
	catalog.CategoryBusiness:       {"Financing", "Legal Basics", "Producing", "Networking"},
}

var fallbackSkills = []string{"Filmmaking Fundamentals"}

// SkillsFor returns the skills a certificate in category grants.
func SkillsFor(category string) []string {
	skills, ok := skillsByCategory[category]
	if !ok {
		skills = fallbackSkills
	}
	return append([]string(nil), skills...)
}
