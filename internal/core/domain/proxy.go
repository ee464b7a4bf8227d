package domain

import "time"

// ProxySafetyMargin is subtracted from a proxy token's lifetime so a
// token is never presented moments before the backend rejects it.
const ProxySafetyMargin = 30 * time.Second

// ProxyInfo is a short-lived credential for direct traffic to a backend
type ProxyInfo struct {
	URL        string    `json:"url"`
	Token      string    `json:"token"`
	IssuedAt   time.Time `json:"issuedAt"`
	TTLSeconds int       `json:"ttlSeconds"`
}

// Valid reports whether the token is still usable at the given instant
func (p *ProxyInfo) Valid(now time.Time) bool {
	if p == nil || p.URL == "" || p.Token == "" {
		return false
	}
	expiry := p.IssuedAt.Add(time.Duration(p.TTLSeconds) * time.Second).Add(-ProxySafetyMargin)
	return now.Before(expiry)
}
