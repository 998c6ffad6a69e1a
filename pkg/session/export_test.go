package session

// RefreshWaiters reports how many callers are currently inside Refresh.
func (m *TokenManager) RefreshWaiters() int64 { return m.waiters.Load() }
