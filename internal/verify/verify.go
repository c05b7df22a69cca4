// Package verify implements the two domain-ownership check primitives
// behind POST /v1/verify/initiate and POST /v1/verify/check: a DNS TXT
// lookup and an HTTP well-known file fetch. It does not itself decide
// policy or persist state -- the verified_domains row is written by the
// caller once a check reports true.
package verify

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	txtRecordPrefix = "croutons-verification="
	wellKnownPath   = "/.well-known/croutons-verification.txt"
	fetchTimeout    = 10 * time.Second
)

// Checker verifies domain ownership via DNS TXT record or well-known file.
type Checker struct {
	httpClient *http.Client
	lookupTXT  func(ctx context.Context, name string) ([]string, error)
}

func New() *Checker {
	return &Checker{
		httpClient: &http.Client{Timeout: fetchTimeout},
		lookupTXT: func(ctx context.Context, name string) ([]string, error) {
			return net.DefaultResolver.LookupTXT(ctx, name)
		},
	}
}

// CheckDNS reports whether domain carries a TXT record of the form
// "croutons-verification=<token>" matching token.
func (c *Checker) CheckDNS(ctx context.Context, domainName, token string) (bool, error) {
	records, err := c.lookupTXT(ctx, domainName)
	if err != nil {
		return false, fmt.Errorf("verify: lookup txt for %s: %w", domainName, err)
	}
	want := txtRecordPrefix + token
	for _, r := range records {
		if r == want {
			return true, nil
		}
	}
	return false, nil
}

// CheckWellKnown reports whether domain serves the expected token at
// /.well-known/croutons-verification.txt over HTTPS.
func (c *Checker) CheckWellKnown(ctx context.Context, domainName, token string) (bool, error) {
	return c.checkWellKnownAt(ctx, "https://"+domainName, token)
}

func (c *Checker) checkWellKnownAt(ctx context.Context, base, token string) (bool, error) {
	url := base + wellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("verify: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("verify: fetch well-known: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, fmt.Errorf("verify: read well-known body: %w", err)
	}
	return strings.TrimSpace(string(body)) == token, nil
}

// Check runs both primitives and reports verified true if either passes.
func (c *Checker) Check(ctx context.Context, domainName, token string) (bool, error) {
	dnsOK, err := c.CheckDNS(ctx, domainName, token)
	if err != nil {
		dnsOK = false // DNS failures are non-fatal; the well-known check may still pass
	}
	if dnsOK {
		return true, nil
	}
	return c.CheckWellKnown(ctx, domainName, token)
}
