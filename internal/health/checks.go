package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Prober performs an uncached availability check.
// [*liveness.Probe] satisfies it.
type Prober interface {
	Check(ctx context.Context) error
}

// ProbeChecker adapts p into a [Checker].
func ProbeChecker(name string, p Prober) Checker {
	return Checker{Name: name, Check: p.Check}
}

// HTTPChecker returns a [Checker] that issues GET url and treats any status
// below 500 as healthy. Services such as melotts and ollama answer their root
// path with 404 or 200 depending on version; only a refused connection or a
// server error means they are down. A nil client uses [http.DefaultClient].
func HTTPChecker(name, url string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	url = strings.TrimRight(url, "/") + "/"
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
			}
			return nil
		},
	}
}
