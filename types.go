package main

// Response format of the status listener
type AgentApiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type AgentInfo struct {
	Version string `json:"version"`
	Kernel  string `json:"kernel"`
	Process string `json:"process"`
	Uptime  int64  `json:"uptime"` // seconds
}
