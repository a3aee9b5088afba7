package enrichment

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nofone/solmatch/internal/company"
)

const (
	awardSourceName = "awards"

	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"

	maxAwardSignals = 5
)

// AwardClient looks up recent federal award history for a company by name.
// It implements Source over a USASpending-style search API.
type AwardClient struct {
	APIURL     string
	UserAgent  string
	HTTPClient *http.Client
	logger     *zap.Logger
}

type awardResponse struct {
	Results []awardRecord `json:"results"`
	Total   int           `json:"total"`
}

type awardRecord struct {
	Agency      string  `json:"awarding_agency"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

func NewAwardClient(apiURL, userAgent string, timeout time.Duration, logger *zap.Logger) *AwardClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AwardClient{
		APIURL:    apiURL,
		UserAgent: userAgent,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *AwardClient) Name() string { return awardSourceName }

// Fetch queries the award search endpoint for the company and condenses the
// response into award signals for the narrative and aggregation stages.
func (c *AwardClient) Fetch(ctx context.Context, profile *company.Profile) (*Context, error) {
	q := url.Values{}
	q.Set("recipient", profile.Name)
	q.Set("limit", strconv.Itoa(maxAwardSignals))

	var resp awardResponse
	if err := c.getJSON(ctx, c.APIURL+"/awards/search", q, &resp); err != nil {
		return nil, err
	}

	if resp.Total == 0 || len(resp.Results) == 0 {
		return &Context{}, nil
	}

	signals := make([]string, 0, len(resp.Results)+1)
	var total float64
	for _, award := range resp.Results {
		total += award.Amount
		if award.Agency != "" {
			signals = append(signals, fmt.Sprintf("prior award from %s", award.Agency))
		}
	}

	summary := fmt.Sprintf("%d federal awards on record totaling $%.0f.", resp.Total, total)

	c.logger.Debug("award lookup completed",
		zap.String("company", profile.Name),
		zap.Int("awards", resp.Total),
	)

	return &Context{
		Summary:      summary,
		AwardSignals: signals,
	}, nil
}

func (c *AwardClient) getJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.URL.RawQuery = q.Encode()

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}
