package util

import (
	"net"
	"net/http/httptest"
	"testing"
)

func mustTrust(t *testing.T, entries ...string) *TrustedProxies {
	t.Helper()
	tp, err := NewTrustedProxies(entries)
	if err != nil {
		t.Fatalf("trusted proxies %v: %v", entries, err)
	}
	return tp
}

func TestClientIPIgnoresHeadersFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/channels", nil)
	req.RemoteAddr = "198.51.100.10:5210"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	req.Header.Set("X-Real-IP", "203.0.113.6")

	if got := ClientIP(req, nil); got != "198.51.100.10" {
		t.Fatalf("nil allowlist: got %q", got)
	}
	if got := ClientIP(req, mustTrust(t, "10.0.0.0/8")); got != "198.51.100.10" {
		t.Fatalf("peer outside allowlist: got %q", got)
	}
}

func TestClientIPForwardedChain(t *testing.T) {
	proxies := mustTrust(t, "10.0.0.0/8", "192.168.1.10", "fd00::/8")

	cases := map[string]struct {
		peer, forwarded, realIP, want string
	}{
		"single hop":               {peer: "10.1.2.3:80", forwarded: "203.0.113.5", want: "203.0.113.5"},
		"proxy hops are skipped":   {peer: "10.1.2.3:80", forwarded: "203.0.113.9, 192.168.1.10, 10.0.0.7", want: "203.0.113.9"},
		"spoofed left entry":       {peer: "192.168.1.10:80", forwarded: "1.1.1.1, 203.0.113.4", want: "203.0.113.4"},
		"garbage falls to real ip": {peer: "10.1.2.3:80", forwarded: "unknown", realIP: "203.0.113.7", want: "203.0.113.7"},
		"every hop trusted":        {peer: "10.1.2.3:80", forwarded: "10.9.9.9, 10.0.0.10", want: "10.9.9.9"},
		"no headers":               {peer: "10.1.2.3:80", want: "10.1.2.3"},
		"ipv6 peer":                {peer: "[fd00::1]:443", forwarded: "2001:db8::5", want: "2001:db8::5"},
	}
	for name, tc := range cases {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = tc.peer
		if tc.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if tc.realIP != "" {
			req.Header.Set("X-Real-IP", tc.realIP)
		}
		if got := ClientIP(req, proxies); got != tc.want {
			t.Errorf("%s: got %q, want %q", name, got, tc.want)
		}
	}
}

func TestClientIPUnparsableRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = " pipe "
	if got := ClientIP(req, nil); got != "pipe" {
		t.Fatalf("got %q", got)
	}
}

func TestNewTrustedProxies(t *testing.T) {
	tp := mustTrust(t, " 192.168.1.1 ", "", "2001:db8::1")
	if !tp.Contains(net.ParseIP("192.168.1.1")) || tp.Contains(net.ParseIP("192.168.1.2")) {
		t.Fatalf("bare ipv4 should become a /32")
	}
	if !tp.Contains(net.ParseIP("2001:db8::1")) || tp.Contains(net.ParseIP("2001:db8::2")) {
		t.Fatalf("bare ipv6 should become a /128")
	}

	empty, err := NewTrustedProxies([]string{" ", ""})
	if err != nil || empty != nil {
		t.Fatalf("blank entries: got %v, %v", empty, err)
	}
	for _, bad := range []string{"bad-cidr", "10.0.0.0/99"} {
		if _, err := NewTrustedProxies([]string{bad}); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
