package main

import (
	"embed"
)

//go:embed assets/dashboard.html
var assets embed.FS

// dashboardHTML returns the embedded dashboard page.
func dashboardHTML() ([]byte, error) {
	return assets.ReadFile("assets/dashboard.html")
}
