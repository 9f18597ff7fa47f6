package payment

// Normalize maps a state observed on retrieve to the status stored locally.
// A payment still CREATED when we look again was abandoned by the payer.
func Normalize(observed string) Status {
	s := Status(observed)
	if s == StatusCreated {
		return StatusCanceled
	}
	return s
}

// Reconcile returns the status to store after observing a retrieve state.
// A terminal current status is never replaced.
func Reconcile(current *Status, observed string) Status {
	if current != nil && current.Terminal() {
		return *current
	}
	return Normalize(observed)
}

// Project maps a record to the lifecycle status of the checkout flow.
func Project(rec Record) LifecycleStatus {
	status := rec.GoPayStatus

	if status == nil {
		if rec.OrderID == nil {
			return LifecycleNew
		}
		return LifecycleUnknown
	}

	switch *status {
	case StatusCreated:
		// Right after a successful create, before anything was retrieved.
		return LifecycleNew
	case StatusPaid:
		return LifecycleCaptured
	case StatusCanceled, StatusTimeouted:
		return LifecycleCanceled
	}
	return LifecycleUnknown
}
