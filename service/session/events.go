package session

// Subscribe registers an observer. The returned channel receives an Event
// for every mutation until cancel is called or the session is closed.
// Delivery never blocks the controller: events are dropped for a
// subscriber whose buffer is full, and the next one carries the full
// snapshot anyway.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, c.cfg.SubscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
	return ch, cancel
}

func (c *Controller) emitLocked(t EventType) {
	if c.closed || len(c.subs) == 0 {
		return
	}
	ev := Event{
		Type:    t,
		Session: c.snapshotLocked(),
		At:      c.clock.Now(),
	}
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Debug("dropping session event for slow subscriber",
				"subscriber", id,
				"event", t,
			)
		}
	}
}

// notifyLocked replaces the current notification and schedules its expiry.
// A pending expiry for an earlier notification is cancelled so it can never
// clear this one.
func (c *Controller) notifyLocked(kind NotificationKind, msg string) {
	c.stopExpiryLocked()
	c.expirySeq++
	seq := c.expirySeq

	c.notification = &Notification{
		Message:   msg,
		Kind:      kind,
		ExpiresAt: c.clock.Now().Add(c.cfg.NotificationTTL),
	}
	c.expiry = c.clock.AfterFunc(c.cfg.NotificationTTL, func() {
		c.expire(seq)
	})

	if c.metrics != nil {
		c.metrics.RecordNotification(string(kind))
	}
	c.emitLocked(EventNotification)
}

func (c *Controller) clearNotificationLocked() {
	c.stopExpiryLocked()
	c.expirySeq++
	if c.notification == nil {
		return
	}
	c.notification = nil
	c.emitLocked(EventNotification)
}

func (c *Controller) stopExpiryLocked() {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}

func (c *Controller) expire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.expirySeq || c.notification == nil {
		return
	}
	c.expiry = nil
	c.notification = nil
	c.emitLocked(EventNotification)
}
