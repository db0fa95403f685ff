package health

// GraphCheck reports the graph unhealthy when verify finds an inconsistency.
// size supplies the piece and island counts shown in the details.
func GraphCheck(verify func() error, size func() (pieces, islands int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "graph",
			Details: make(map[string]any),
		}

		pieces, islands := size()
		check.Details["pieces"] = pieces
		check.Details["islands"] = islands

		if err := verify(); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Consistent"
		}

		return check
	}
}

// EventsCheck reports degraded once any event has been dropped for a slow subscriber
func EventsCheck(dropped func() uint64) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "events",
			Details: make(map[string]any),
		}

		n := dropped()
		check.Details["dropped"] = n

		if n > 0 {
			check.Status = StatusDegraded
			check.Message = "Events dropped"
		} else {
			check.Status = StatusHealthy
			check.Message = "Delivering"
		}

		return check
	}
}

// ProgressCheck is a readiness check that passes once every step has run
func ProgressCheck(progress func() (done, total int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "scenario",
			Details: make(map[string]any),
		}

		done, total := progress()
		check.Details["steps_done"] = done
		check.Details["steps_total"] = total

		if done < total {
			check.Status = StatusUnhealthy
			check.Message = "Scenario running"
		} else {
			check.Status = StatusHealthy
			check.Message = "Scenario complete"
		}

		return check
	}
}
