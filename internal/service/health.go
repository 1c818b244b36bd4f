package service

import "context"

// ComponentHealth is one dependency probe result.
type ComponentHealth struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
}

// AllHealthy reports whether every probe passed.
func AllHealthy(checks []ComponentHealth) bool {
	for _, c := range checks {
		if !c.Healthy {
			return false
		}
	}
	return true
}

func probe(ctx context.Context, component string, check func(context.Context) error) ComponentHealth {
	if err := check(ctx); err != nil {
		return ComponentHealth{Component: component, Healthy: false, Detail: err.Error()}
	}
	return ComponentHealth{Component: component, Healthy: true}
}
