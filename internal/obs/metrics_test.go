package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/accounts/abc":                  "/v1/accounts/:id",
		"/v1/accounts/abc/holdings":         "/v1/accounts/:id/holdings",
		"/v1/accounts/abc/orders":           "/v1/accounts/:id/orders",
		"/v1/accounts/abc/transactions?x=1": "/v1/accounts/:id/transactions",
		"/v1/accounts/abc/extra":            "/v1/accounts/abc/extra",
		"/v1/accounts/abc/orders/deep":      "/v1/accounts/abc/orders/deep",
		"/v1/quotes/AAPL":                   "/v1/quotes/:symbol",
		"/v1/stream":                        "/v1/stream",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
