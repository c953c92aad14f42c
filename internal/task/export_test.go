package task

// Bridges for the external test package.
const (
	TitleFromDescriptionRunes = titleFromDescriptionRunes
	FallbackTitle             = fallbackTitle
)

var StatsWindow = statsWindow
