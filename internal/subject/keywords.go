package subject

import "strings"

// keywordGroup ties a generic subject key to the domain terms that imply it.
type keywordGroup struct {
	key      string
	keywords []string
}

// questionKeywords is ordered so detection is deterministic when a question
// touches more than one domain.
var questionKeywords = []keywordGroup{
	{"math", []string{"math", "mathematics", "calculus", "algebra", "geometry", "trigonometry"}},
	{"physics", []string{"physics", "mechanics", "thermodynamics", "electricity", "magnetism"}},
	{"chemistry", []string{"chemistry", "organic", "inorganic", "chemical", "molecule"}},
	{"biology", []string{"biology", "anatomy", "physiology", "genetics", "cell"}},
	{"computer science", []string{"programming", "coding", "algorithm", "data structure", "software"}},
	{"history", []string{"history", "historical", "ancient", "medieval", "modern"}},
	{"literature", []string{"literature", "poetry", "novel", "author", "writing"}},
	{"economics", []string{"economics", "market", "economy", "finance", "money"}},
}

// DetectInQuestion returns the vocabulary entry a question appears to be
// about, or "" when no subject can be inferred. An explicit mention of a
// subject name wins; otherwise domain keywords are matched and mapped back
// onto the closest owned subject by substring containment either way.
func DetectInQuestion(question string, vocabulary []string) string {
	if question == "" || len(vocabulary) == 0 {
		return ""
	}
	lower := strings.ToLower(question)

	for _, v := range vocabulary {
		if strings.Contains(lower, strings.ToLower(v)) {
			return v
		}
	}

	for _, group := range questionKeywords {
		hit := false
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		for _, v := range vocabulary {
			vLower := strings.ToLower(v)
			if strings.Contains(vLower, group.key) || strings.Contains(group.key, vLower) {
				return v
			}
		}
	}

	return ""
}
