package bridge

import (
	"net/http"
	"os"
)

// productionURL derives the externally reachable base URL from the incoming
// request; the hosting platform terminates TLS and forwards the original
// scheme.
func productionURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "https"
	}
	host := r.Host
	if host == "" {
		host = os.Getenv("PUBLIC_HOST")
	}
	return proto + "://" + host
}

func redirectURL(r *http.Request) string {
	return productionURL(r) + "/api/oauth?action=callback"
}

func webhookURL(r *http.Request) string {
	return productionURL(r) + "/api/webhook"
}
