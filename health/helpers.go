package health

import "time"

// NewHealthy builds a healthy status for the named component.
func NewHealthy(component, message string) Status {
	return newStatus(component, "healthy", true, message)
}

// NewUnhealthy builds an unhealthy status for the named component.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, "unhealthy", false, message)
}

// NewDegraded builds a degraded status. Degraded components are not
// healthy, but they are still serving.
func NewDegraded(component, message string) Status {
	return newStatus(component, "degraded", false, message)
}

func newStatus(component, state string, healthy bool, message string) Status {
	return Status{
		Component: component,
		Healthy:   healthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate rolls a set of component statuses up into one status for the
// whole service. Any unhealthy component makes the aggregate unhealthy;
// otherwise any degraded component makes it degraded. The input statuses
// are copied into SubStatuses so endpoints like /healthz can report
// per-component detail.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no components reporting")
	}

	unhealthy := 0
	degraded := 0
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			unhealthy++
		case sub.IsDegraded():
			degraded++
		}
	}

	var status Status
	switch {
	case unhealthy > 0:
		status = NewUnhealthy(component, "one or more components unhealthy")
	case degraded > 0:
		status = NewDegraded(component, "one or more components degraded")
	default:
		status = NewHealthy(component, "all components healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)

	return status
}
