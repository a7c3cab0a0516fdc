package main

import (
	"context"

	"github.com/Ivan-Kwetey/ArtInsight/internal/middleware"
	"github.com/Ivan-Kwetey/ArtInsight/internal/prediction"
)

// healthCheckers reports the classifier and the metadata table. rt is nil when
// the server runs degraded. An empty table only degrades the report because
// lookups still answer with the unknown title and artist.
func healthCheckers(rt *prediction.Runtime) map[string]middleware.HealthChecker {
	return map[string]middleware.HealthChecker{
		"model": middleware.CheckerFunc(func(context.Context) middleware.Component {
			if rt == nil || rt.Service == nil {
				return middleware.Down(prediction.ErrUnavailable)
			}
			return middleware.Component{State: middleware.StateUp, Count: len(rt.Service.Labels())}
		}),
		"metadata": middleware.CheckerFunc(func(context.Context) middleware.Component {
			n := 0
			if rt != nil {
				n = rt.Table.Len()
			}
			if n == 0 {
				return middleware.Component{State: middleware.StateDegraded, Detail: "no metadata records loaded"}
			}
			return middleware.Component{State: middleware.StateUp, Count: n}
		}),
	}
}
