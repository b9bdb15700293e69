package api

import (
	"time"

	"github.com/ifpj/netwatch/internal/diag"
)

type healthzResponse struct {
	Status     string  `json:"status"`
	Time       string  `json:"time"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

func healthzPayload() healthzResponse {
	snapshot := diag.Collect()
	return healthzResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339),
		Goroutines: snapshot.Goroutines,
		RSSBytes:   snapshot.RSSBytes,
		CPUPercent: snapshot.CPUPercent,
	}
}
