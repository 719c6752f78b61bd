package render

import (
	"Shurahub/internal/config"
	"Shurahub/internal/storage"
)

// LoadTheme returns the stored theme, or fallback when none is stored
func LoadTheme(prefs storage.Preferences, fallback string) string {
	if v, ok := prefs.Get(storage.KeyTheme); ok && (v == config.ThemeDark || v == config.ThemeLight) {
		return v
	}
	return fallback
}

// ToggleTheme flips between dark and light and persists the result
func ToggleTheme(prefs storage.Preferences, current string) string {
	next := config.ThemeDark
	if current == config.ThemeDark {
		next = config.ThemeLight
	}
	prefs.Set(storage.KeyTheme, next)
	return next
}

// GlamourStyle maps a theme onto a glamour standard style
func GlamourStyle(theme string) string {
	if theme == config.ThemeLight {
		return "light"
	}
	return "dark"
}
