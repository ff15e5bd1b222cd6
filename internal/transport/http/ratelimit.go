package http

import "golang.org/x/time/rate"

// messageLimiter bounds how many inbound frames one connection may send.
// A nil limiter allows everything.
type messageLimiter struct {
	lim *rate.Limiter
}

func newMessageLimiter(perSecond float64, burst int) *messageLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &messageLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (m *messageLimiter) allow() bool {
	if m == nil {
		return true
	}
	return m.lim.Allow()
}
