package session

import "sync"

// DefaultUserAgents is the user-agent pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/116.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 Edg/115.0.1901.188",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 OPR/101.0.0.0",
}

// Identity is the network persona of one browsing context.
type Identity struct {
	Proxy     string `json:"proxy,omitempty"`
	UserAgent string `json:"userAgent"`
}

// Rotator hands out identities round-robin. Proxies and user agents advance
// together. Each session owns its own Rotator.
type Rotator struct {
	mu         sync.Mutex
	proxies    []string
	userAgents []string
	cursor     int
}

// NewRotator creates a rotator. An empty userAgents slice selects
// DefaultUserAgents; an empty proxies slice means direct connections.
func NewRotator(proxies, userAgents []string) *Rotator {
	if len(userAgents) == 0 {
		userAgents = DefaultUserAgents
	}
	return &Rotator{
		proxies:    append([]string(nil), proxies...),
		userAgents: append([]string(nil), userAgents...),
	}
}

// Next returns the identity at the cursor and advances it.
func (r *Rotator) Next() Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := Identity{UserAgent: r.userAgents[r.cursor%len(r.userAgents)]}
	if len(r.proxies) > 0 {
		id.Proxy = r.proxies[r.cursor%len(r.proxies)]
	}
	r.cursor++
	return id
}

// Issued returns how many identities have been handed out.
func (r *Rotator) Issued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}
