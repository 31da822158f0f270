package taxreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tqvinh-dev/salepoint-backend/pkg/config"
	pkgerrors "github.com/tqvinh-dev/salepoint-backend/pkg/errors"
	"github.com/tqvinh-dev/salepoint-backend/pkg/logger"
	"github.com/tqvinh-dev/salepoint-backend/pkg/metrics"
)

// StatusActive is the registry's code for a company in good standing.
// Any other code is surfaced to the operator verbatim.
const StatusActive = "00"

var errBaseURLRequired = errors.New("tax registry base url is required")

// Client looks up company records in the public tax registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.CheckoutMetrics
}

func NewClient(cfg config.TaxRegistryConfig, logg *logger.Logger, mets *metrics.CheckoutMetrics) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
		metrics:    mets,
	}, nil
}

// Company is a single registry record.
type Company struct {
	TaxCode    string
	Name       string
	Address    string
	StatusCode string
}

// Active reports whether the registry considers the company operating.
func (c Company) Active() bool {
	return c.StatusCode == StatusActive
}

type registryRecord struct {
	TaxCode    string `json:"tax_code"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	StatusCode string `json:"status_code"`
}

// Lookup fetches the registry record for a tax code. A missing record maps
// to CodeNotFound so the buyer form can fall back to manual entry.
func (c *Client) Lookup(ctx context.Context, taxCode string) (*Company, error) {
	taxCode = strings.TrimSpace(taxCode)
	if taxCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax code is required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/companies/%s", c.baseURL, url.PathEscape(taxCode))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build registry request")
	}

	c.log(ctx, "request", "lookup_company", map[string]any{"tax_code": taxCode})

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.ObserveGateway("taxreg", "lookup_company", time.Since(started))
	if err != nil {
		c.log(ctx, "error", "lookup_company", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tax registry unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tax code not found")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		err := fmt.Errorf("tax registry returned status %d", resp.StatusCode)
		c.log(ctx, "error", "lookup_company", map[string]any{"error": err.Error(), "status": resp.StatusCode})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tax registry request failed")
	}

	var record registryRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		c.log(ctx, "error", "lookup_company", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tax registry response")
	}

	company := &Company{
		TaxCode:    record.TaxCode,
		Name:       record.Name,
		Address:    record.Address,
		StatusCode: record.StatusCode,
	}
	if company.TaxCode == "" {
		company.TaxCode = taxCode
	}

	c.log(ctx, "response", "lookup_company", map[string]any{
		"tax_code":    company.TaxCode,
		"status_code": company.StatusCode,
	})
	return company, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"gateway":   "taxreg",
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("taxreg %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("taxreg %s", phase))
	}
}
