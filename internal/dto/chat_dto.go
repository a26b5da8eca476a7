package dto

import (
	"time"

	"datachat-be/pkg/agent/viz"
)

type ChatRequest struct {
	Message   string `json:"message" validate:"required,max=1000"`
	SessionId string `json:"session_id,omitempty" validate:"omitempty,uuid4"`
	Index     string `json:"index,omitempty"`
}

type ChatResponse struct {
	SessionId   string                   `json:"session_id"`
	Message     string                   `json:"message"`
	Intent      string                   `json:"intent,omitempty"`
	Reasoning   string                   `json:"reasoning,omitempty"`
	ChartConfig *viz.ChartConfig         `json:"chart_config,omitempty"`
	Data        []map[string]interface{} `json:"data,omitempty"`
	Insights    []string                 `json:"insights,omitempty"`
}

type TurnDTO struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	ChartType string    `json:"chart_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionResponse struct {
	Id          string    `json:"id"`
	State       string    `json:"state"`
	ActiveIndex string    `json:"active_index"`
	Turns       []TurnDTO `json:"turns"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
}
