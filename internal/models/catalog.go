package models

import "time"

type Section struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Slug        string     `json:"slug"`
	Image       *string    `json:"image,omitempty"`
	Position    int        `json:"position"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type Lecture struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	Image       *string    `json:"image,omitempty"`
	Slug        string     `json:"slug"`
	LectureType string     `json:"lectureType,omitempty"`
	SectionID   *string    `json:"sectionId,omitempty"`
	Position    int        `json:"position"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type Contact struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Address     string  `json:"address,omitempty"`
	Position    string  `json:"position,omitempty"`
	Description string  `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
	IsActive    bool    `json:"isActive"`
	SortOrder   int     `json:"sortOrder"`
}
