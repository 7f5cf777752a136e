package models

import (
	"fmt"
	"strings"
	"time"
)

// ProjectCategory classifies the project on the settings page.
type ProjectCategory string

const (
	ProjectCategorySoftware  ProjectCategory = "software"
	ProjectCategoryMarketing ProjectCategory = "marketing"
	ProjectCategoryBusiness  ProjectCategory = "business"
)

var ProjectCategories = []ProjectCategory{
	ProjectCategorySoftware,
	ProjectCategoryMarketing,
	ProjectCategoryBusiness,
}

func (c ProjectCategory) Valid() bool {
	for _, v := range ProjectCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Project holds the board's project settings.
type Project struct {
	Name        string          `json:"name"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	Category    ProjectCategory `json:"category"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func ParseProjectCategory(raw string) (ProjectCategory, error) {
	v := ProjectCategory(strings.ToLower(strings.TrimSpace(raw)))
	if v == "" {
		return "", fmt.Errorf("category is required")
	}
	if !v.Valid() {
		return "", fmt.Errorf("invalid category: %s", raw)
	}
	return v, nil
}
