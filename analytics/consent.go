package analytics

// SetConsent records the visitor's consent decision. Granting consent to a
// configured tracker that has not started yet runs the init flow.
func (t *Tracker) SetConsent(granted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()

	t.consentSet = true
	t.hasConsent = granted
	t.debug("consent updated", "granted", granted)
	if granted && t.configured && !t.initialized {
		t.start()
	}
}

// OptOut stops all tracking and persists the choice in the opt-out cookie.
// Queued events are discarded.
func (t *Tracker) OptOut() {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()

	t.optedOut = true
	t.resolver().SetOptOut(true)
	if t.queue != nil {
		t.queue.Clear()
	}
	t.debug("opted out")
}

// OptIn removes the opt-out cookie and starts the tracker if it was
// configured but never initialized.
func (t *Tracker) OptIn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()

	t.optedOut = false
	t.resolver().SetOptOut(false)
	t.debug("opted in")
	if t.configured && !t.initialized {
		t.start()
	}
}

// Reset forgets the visitor: identity cookies are cleared and, once
// initialized, a fresh visitor and session are created. Events already
// queued are sent under the old identity first.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer t.recoverPanic()

	if t.queue != nil && t.canTrack() {
		t.flushAll(false)
	}
	r := t.resolver()
	r.Clear()
	t.visitorID, t.sessionID = "", ""
	if !t.initialized {
		return
	}
	t.visitorID = r.Visitor()
	t.resolveSession()
	t.debug("identity reset", "visitorId", t.visitorID, "sessionId", t.sessionID)
}
