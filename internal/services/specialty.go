package services

import "strings"

// specialtyAliasGroups maps a canonical specialty tag to the spellings and
// synonyms seen in course taxonomies and trainer profiles. Course
// categories are normalized through this table before being compared
// against a trainer's specialty list.
var specialtyAliasGroups = map[string][]string{
	"ai": {
		"ai",
		"a_i",
		"artificial_intelligence",
		"artifical_intelligence",
		"artificial_intellegence",
		"artificial_inteligence",
		"machine_learning",
	},
	"coding": {
		"coding",
		"programming",
		"computer_programming",
	},
	"robotics": {
		"robotics",
		"robotic",
	},
	"mathematics": {
		"mathematics",
		"maths",
		"math",
	},
	"science": {
		"science",
		"general_science",
	},
}

func normalizeSpecialty(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	value = strings.ReplaceAll(value, ".", "")
	value = strings.ReplaceAll(value, " ", "_")
	value = strings.ReplaceAll(value, "-", "_")
	return value
}

// canonicalSpecialty collapses a raw value to its canonical tag when it is
// a known alias, otherwise to its normalized form.
func canonicalSpecialty(value string) string {
	normalized := normalizeSpecialty(value)
	for canonical, aliases := range specialtyAliasGroups {
		for _, alias := range aliases {
			if normalized == alias {
				return canonical
			}
		}
	}
	return normalized
}

// expandSpecialties returns the full alias set for each raw value, so the
// array-overlap filter in the candidate query matches any spelling a
// trainer used. Empty values are dropped.
func expandSpecialties(values []string) []string {
	seen := make(map[string]struct{})
	expanded := make([]string, 0, len(values))

	appendValue := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		expanded = append(expanded, v)
	}

	for _, value := range values {
		canonical := canonicalSpecialty(value)
		if canonical == "" {
			continue
		}
		if aliases, ok := specialtyAliasGroups[canonical]; ok {
			for _, alias := range aliases {
				appendValue(alias)
			}
			continue
		}
		appendValue(canonical)
	}
	return expanded
}
