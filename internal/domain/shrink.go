package domain

// ShrinkAction is one way of shortening a résumé body.
type ShrinkAction int

const (
	ShrinkCollapseCredentials ShrinkAction = iota + 1
	ShrinkMergeSkillCategories
	ShrinkDropLeastRelevantBullet
	ShrinkDropDuplicateBullet
	ShrinkDropExperienceEntry
	ShrinkDropProjectEntry
	ShrinkRephraseSummary
)

// ShrinkPriority is the order in which the rewrite oracle must consider actions.
var ShrinkPriority = []ShrinkAction{
	ShrinkCollapseCredentials,
	ShrinkMergeSkillCategories,
	ShrinkDropLeastRelevantBullet,
	ShrinkDropDuplicateBullet,
	ShrinkDropExperienceEntry,
	ShrinkDropProjectEntry,
	ShrinkRephraseSummary,
}

// ShrinkPolicy holds the floors and caps the shrink actions respect.
type ShrinkPolicy struct {
	MaxSkillCategories   int
	MinExperienceEntries int
	MinProjectEntries    int
}

// DefaultShrinkPolicy returns the standard limits.
func DefaultShrinkPolicy() ShrinkPolicy {
	return ShrinkPolicy{
		MaxSkillCategories:   4,
		MinExperienceEntries: 2,
		MinProjectEntries:    2,
	}
}

func (a ShrinkAction) String() string {
	switch a {
	case ShrinkCollapseCredentials:
		return "collapse_credentials"
	case ShrinkMergeSkillCategories:
		return "merge_skill_categories"
	case ShrinkDropLeastRelevantBullet:
		return "drop_least_relevant_bullet"
	case ShrinkDropDuplicateBullet:
		return "drop_duplicate_bullet"
	case ShrinkDropExperienceEntry:
		return "drop_experience_entry"
	case ShrinkDropProjectEntry:
		return "drop_project_entry"
	case ShrinkRephraseSummary:
		return "rephrase_summary"
	}
	return "unknown"
}
