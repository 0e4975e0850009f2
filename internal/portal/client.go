package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MeterWatch/internal/model"
)

// submitLabel is the portal's localized "recharge history" button value;
// the form rejects submissions without it.
const submitLabel = "রিচার্জ হিস্ট্রি"

// Client scrapes the prepaid portal. The anti-forgery token is bound to
// the session cookie, so the client owns a cookie-jarred http.Client that
// is reused across the GET/POST pair and across meters within one run.
type Client struct {
	URL         string
	HTTP        *http.Client
	MaxAttempts int
	RetryDelay  time.Duration
}

// NewClient creates a portal client with optional proxy support.
func NewClient(portalURL string, timeout time.Duration, maxAttempts int, retryDelay time.Duration, proxyURL string) *Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	jar, _ := cookiejar.New(nil)
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		URL: portalURL,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
		},
		MaxAttempts: maxAttempts,
		RetryDelay:  retryDelay,
	}
}

func (c *Client) Name() string { return "nesco" }

// FetchReading runs the token/submit/parse cycle for one meter, retrying
// the whole cycle on failure with a fixed delay between attempts. It never
// propagates a failure to the caller: a reading with Err set means all
// attempts were exhausted.
func (c *Client) FetchReading(ctx context.Context, custNo string) model.BalanceReading {
	reading := model.BalanceReading{
		CustomerNo:   custNo,
		UpdatedLabel: "N/A",
		FetchedAt:    time.Now(),
	}

	var lastErr error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		balance, label, err := c.fetchOnce(ctx, custNo)
		if err == nil {
			reading.Balance = balance
			if label != "" {
				reading.UpdatedLabel = label
			}
			return reading
		}
		lastErr = err
		log.Printf("[WARN] fetch %s attempt %d/%d: %v", custNo, attempt, c.MaxAttempts, err)

		if attempt < c.MaxAttempts {
			select {
			case <-ctx.Done():
				reading.Err = ctx.Err()
				return reading
			case <-time.After(c.RetryDelay):
			}
		}
	}
	reading.Err = lastErr
	return reading
}

func (c *Client) fetchOnce(ctx context.Context, custNo string) (*float64, string, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, "", err
	}

	form := url.Values{
		"_token":  {token},
		"cust_no": {custNo},
		"submit":  {submitLabel},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", &model.FetchError{Stage: model.StageSubmit, CustomerNo: custNo, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", &model.FetchError{Stage: model.StageSubmit, CustomerNo: custNo, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", &model.FetchError{
			Stage:      model.StageSubmit,
			CustomerNo: custNo,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", &model.FetchError{Stage: model.StageParse, CustomerNo: custNo, Err: err}
	}

	// A page without a balance field is degraded output, not a retryable
	// failure: the run proceeds with balance absent.
	return extractBalance(doc), extractUpdateLabel(doc), nil
}

// fetchToken GETs the portal page and pulls the anti-forgery token out of
// the form, establishing the session cookie as a side effect.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", &model.FetchError{Stage: model.StageToken, Err: err}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &model.FetchError{Stage: model.StageToken, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &model.FetchError{Stage: model.StageToken, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &model.FetchError{Stage: model.StageToken, Err: err}
	}
	token, ok := doc.Find(`input[name="_token"]`).Attr("value")
	if !ok || token == "" {
		return "", &model.FetchError{Stage: model.StageToken, Err: errors.New("no _token field on page")}
	}
	return token, nil
}
