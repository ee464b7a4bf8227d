package domain

import (
	"testing"
	"time"
)

func TestProxyInfoValid(t *testing.T) {
	now := time.Now()

	p := &ProxyInfo{
		URL:        "https://proxy.example",
		Token:      "tok",
		IssuedAt:   now,
		TTLSeconds: 3600,
	}
	if !p.Valid(now) {
		t.Error("fresh token should be valid")
	}

	// inside the safety margin
	if p.Valid(now.Add(3600*time.Second - 10*time.Second)) {
		t.Error("token within safety margin should be invalid")
	}

	// expired outright
	if p.Valid(now.Add(2 * time.Hour)) {
		t.Error("expired token should be invalid")
	}

	var nilInfo *ProxyInfo
	if nilInfo.Valid(now) {
		t.Error("nil ProxyInfo should be invalid")
	}

	empty := &ProxyInfo{IssuedAt: now, TTLSeconds: 3600}
	if empty.Valid(now) {
		t.Error("ProxyInfo without url/token should be invalid")
	}
}
