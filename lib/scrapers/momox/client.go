package momox

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("momox-agent.lib.scrapers.momox")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientConfig struct {
	// defaults to https://www.momox.de
	BaseUrl string `json:"base_url"`
	// js rendering proxy, e.g. https://app.scrapingbee.com/api/v1/.
	// leave empty to disable the rendered tier entirely.
	RenderApiUrl string `json:"render_api_url"`
	RenderApiKey string `json:"render_api_key"`
}

// Client reaches the offer view for an isbn through each of the tiers.
// it holds no per-isbn state, fetches are idempotent.
type Client struct {
	config ClientConfig
	http   *resty.Client
	render *resty.Client
}

func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseUrl == "" {
		config.BaseUrl = "https://www.momox.de"
	}
	base, err := url.Parse(config.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(config.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetHeader("accept", "application/json, text/plain, */*")
	httpClient.SetHeader("accept-language", "de-DE,de;q=0.9,en;q=0.8")
	httpClient.SetHeader("referer", config.BaseUrl+"/")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	httpClient.SetTimeout(time.Second * 15)

	// 1 request max per second on top of the scheduler's own delay,
	// so a misconfigured delay can never hammer the site
	rateLimiter := rate.NewLimiter(1, 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	render := resty.New()
	render.SetHeader("user-agent", userAgent)
	// rendering takes as long as a real browser pageload
	render.SetTimeout(time.Second * 90)

	return &Client{
		config: config,
		http:   httpClient,
		render: render,
	}, nil
}

// OfferUrl is the structured offer endpoint for an isbn.
func (c *Client) OfferUrl(isbn string) string {
	return fmt.Sprintf("%s/api/v2/offer?ean=%s", c.config.BaseUrl, url.QueryEscape(isbn))
}

// SearchUrl is the human-facing page for an isbn, also used as the
// reference link in reports.
func (c *Client) SearchUrl(isbn string) string {
	return fmt.Sprintf("%s/suche/?q=%s", c.config.BaseUrl, url.QueryEscape(isbn))
}

// RenderedTierAvailable reports whether the rendering proxy is configured.
func (c *Client) RenderedTierAvailable() bool {
	return c.config.RenderApiUrl != "" && c.config.RenderApiKey != ""
}

// Fetch executes one tier for one isbn. an error return means the
// transport failed, a non-2xx status comes back inside the response.
func (c *Client) Fetch(ctx context.Context, tier Tier, isbn string) (Response, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("isbn", isbn),
		attribute.String("tier", tier.String()),
	)

	var res *resty.Response
	var err error
	switch tier {
	case TierOffer:
		res, err = c.http.R().
			SetContext(ctx).
			Get(c.OfferUrl(isbn))
	case TierPage:
		res, err = c.http.R().
			SetContext(ctx).
			SetHeader("accept", "text/html,application/xhtml+xml").
			Get(c.SearchUrl(isbn))
	case TierRendered:
		if !c.RenderedTierAvailable() {
			err = fmt.Errorf("rendering proxy is not configured")
			break
		}
		res, err = c.render.R().
			SetContext(ctx).
			SetQueryParam("api_key", c.config.RenderApiKey).
			SetQueryParam("url", c.SearchUrl(isbn)).
			SetQueryParam("render_js", "true").
			Get(c.config.RenderApiUrl)
	default:
		err = fmt.Errorf("unknown tier %v", tier)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tier fetch failed")
		return Response{}, err
	}

	span.SetAttributes(attribute.Int("status", res.StatusCode()))
	return Response{
		Tier:       tier,
		StatusCode: res.StatusCode(),
		Body:       res.Body(),
	}, nil
}
