package reachability

import "linkcore/internal/models"

// CoreEndpoints are always registered ahead of caller-supplied endpoints.
func CoreEndpoints() []models.Endpoint {
	return []models.Endpoint{
		{
			Name:           "core-heartbeat",
			Description:    "connectivity check (HTTP 204)",
			URL:            "https://clients3.google.com/generate_204",
			TimeoutSeconds: 3600,
			Default:        true,
		},
	}
}
