package dto

import "time"

type AddProjectInput struct {
	Name string
}

type ProjectOutput struct {
	Name       string    `json:"name"`
	Created    time.Time `json:"created"`
	Active     bool      `json:"active"`
	TotalHours float64   `json:"total_hours"`
}

type SessionOutput struct {
	Start           time.Time `json:"start"`
	Stop            time.Time `json:"stop"`
	DurationMinutes int       `json:"duration"`
}

type ProjectDetailOutput struct {
	Name                string          `json:"name"`
	Created             time.Time       `json:"created"`
	Active              bool            `json:"active"`
	CurrentSessionStart *time.Time      `json:"current_session_start"`
	Sessions            []SessionOutput `json:"sessions"`
	TotalHours          float64         `json:"total_hours"`
}
