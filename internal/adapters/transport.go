package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// isRetryableResp matches the corpus's retry condition: network errors,
// server errors, and rate limiting are retried; everything else (including
// auth failures) is not.
func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return (code >= 500 && code <= 599) || code == 429 || code == 408
}

// NewRESTClient builds the resty client shared by the REST-based adapters,
// pre-wired with the corpus's retry/backoff policy. name is used only for
// log context (e.g. "projectx", "tradovate").
func NewRESTClient(name, baseURL string) *resty.Client {
	baseURL = strings.TrimRight(baseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	client.OnError(func(req *resty.Request, err error) {
		logger.WithFields(map[string]interface{}{
			"adapter": name, "url": req.URL,
		}).WithError(err).Warn("adapter request failed after retries")
	})

	return client
}

// AuthEndpoints is the ordered list of authentication endpoint paths every
// adapter's Connect probes against each candidate base URL, in the order
// the connection protocol tries them.
var AuthEndpoints = []string{
	"/auth/login", "/api/auth/login", "/v1/auth/login", "/login",
	"/api/login", "/authenticate", "/api/authenticate", "/oauth/token",
}

// CandidateBaseURLs returns the base URLs Discover probes, in order: a
// firm-specific override first (if set and distinct), then the platform
// family's conventional default.
func CandidateBaseURLs(override, platformDefault string) []string {
	override = strings.TrimRight(override, "/")
	platformDefault = strings.TrimRight(platformDefault, "/")
	if override == "" || override == platformDefault {
		return []string{platformDefault}
	}
	return []string{override, platformDefault}
}

// credentialShape is one of the three credential bodies Discover tries
// against every auth endpoint, in the fixed order the protocol specifies.
type credentialShape struct {
	name   string
	usable func(model.ConnectConfig) bool
	body   func(model.ConnectConfig) map[string]interface{}
}

var credentialShapes = []credentialShape{
	{
		name:   "email_password",
		usable: func(c model.ConnectConfig) bool { return c.HasEmailPassword() },
		body: func(c model.ConnectConfig) map[string]interface{} {
			return map[string]interface{}{"email": c.Email, "password": c.Password}
		},
	},
	{
		name:   "api_key_secret",
		usable: func(c model.ConnectConfig) bool { return c.HasAPIKey() },
		body: func(c model.ConnectConfig) map[string]interface{} {
			return map[string]interface{}{"apiKey": c.APIKey, "apiSecret": c.APISecret}
		},
	},
	{
		name:   "username_password",
		usable: func(c model.ConnectConfig) bool { return c.AccountNumber != "" && c.Password != "" },
		body: func(c model.ConnectConfig) map[string]interface{} {
			return map[string]interface{}{"username": c.AccountNumber, "password": c.Password}
		},
	},
}

// DiscoveredSession is the winning (base URL, auth endpoint, credential
// shape) tuple Discover caches after a successful probe, plus whatever
// session token the auth endpoint issued and the client bound to that base
// URL. Adapters reuse Client/Token for every subsequent call instead of
// repeating discovery.
type DiscoveredSession struct {
	BaseURL      string
	AuthEndpoint string
	Shape        string
	Token        string
	Client       *resty.Client
}

// Discover implements the connection protocol shared by every adapter's
// Connect: try each candidate base URL in order, and against each one try
// every auth endpoint with every credential shape the supplied
// ConnectConfig actually makes usable, until one returns 2xx. A 5xx
// abandons the current base URL for the next candidate; a 4xx just moves
// on to the next endpoint or shape. accountProbe re-validates the winning
// tuple against the platform's own account endpoint before Discover
// accepts it — a platform that accepts any login but rejects everything
// afterward would otherwise be cached as reachable.
func Discover(ctx context.Context, name string, candidateBaseURLs []string, cfg model.ConnectConfig, accountProbe func(client *resty.Client, disc *DiscoveredSession) error) (*DiscoveredSession, error) {
	var lastErr error
	for _, baseURL := range candidateBaseURLs {
		client := NewRESTClient(name, baseURL)
		disc, keepTrying, err := discoverOnBase(ctx, name, client, baseURL, cfg, accountProbe)
		if disc != nil {
			return disc, nil
		}
		if err != nil {
			lastErr = err
		}
		if !keepTrying {
			break
		}
	}
	if lastErr == nil {
		lastErr = apperr.Validation(fmt.Sprintf("%s: no usable credential shape supplied", name), nil)
	}
	return nil, lastErr
}

// discoverOnBase runs one candidate base URL through every auth endpoint
// and credential shape. The bool return reports whether the caller should
// keep trying further base URLs: false when no credential shape was even
// usable (trying another base URL cannot help), true otherwise.
func discoverOnBase(ctx context.Context, name string, client *resty.Client, baseURL string, cfg model.ConnectConfig, accountProbe func(*resty.Client, *DiscoveredSession) error) (*DiscoveredSession, bool, error) {
	tried := false
	for _, endpoint := range AuthEndpoints {
		for _, shape := range credentialShapes {
			if !shape.usable(cfg) {
				continue
			}
			tried = true

			var body struct {
				Token        string `json:"token"`
				AccessToken  string `json:"accessToken"`
				SessionToken string `json:"sessionToken"`
			}
			resp, err := client.R().SetContext(ctx).SetBody(shape.body(cfg)).SetResult(&body).Post(endpoint)
			if err != nil {
				continue
			}
			if resp.StatusCode() >= 500 {
				return nil, true, apperr.Transport(fmt.Sprintf("%s: auth endpoint %s returned %d", name, endpoint, resp.StatusCode()), nil)
			}
			if resp.StatusCode() == 401 || resp.StatusCode() == 403 || resp.IsError() {
				continue
			}

			disc := &DiscoveredSession{
				BaseURL:      baseURL,
				AuthEndpoint: endpoint,
				Shape:        shape.name,
				Token:        firstNonEmpty(body.Token, body.AccessToken, body.SessionToken),
				Client:       client,
			}
			if accountProbe != nil {
				if err := accountProbe(client, disc); err != nil {
					continue
				}
			}
			return disc, false, nil
		}
	}
	if !tried {
		return nil, false, nil
	}
	return nil, true, apperr.Auth(fmt.Sprintf("%s: credentials rejected on every candidate endpoint", name), nil)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
