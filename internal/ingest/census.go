package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tractwise/tractwise/internal/domain"
	"github.com/tractwise/tractwise/internal/errors"
)

// Without a key the Census API allows 500 requests per day; with one
// the practical limit is throughput, not quota. One request per
// second with a small burst stays polite either way.
const censusRequestsPerSecond = 1

// CensusQuery describes one tract-level pull.
type CensusQuery struct {
	// Dataset is the API path segment, e.g. "dec/pl" or "acs/acs5".
	Dataset string
	Year    int
	// Variables maps API variable codes to canonical attribute names.
	Variables map[string]string
	State     string
	County    string
}

// CensusClient pulls tract attributes straight from the Census API as
// an alternative to file extracts.
type CensusClient struct {
	baseURL string
	key     string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewCensusClient creates a client. The API key may be empty.
func NewCensusClient(baseURL, key string, timeout time.Duration, logger *slog.Logger) *CensusClient {
	return &CensusClient{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(censusRequestsPerSecond, 2),
		logger:  logger,
	}
}

// FetchSnapshots runs one query and returns a snapshot per tract,
// with the GEOID assembled from the state, county, and tract codes
// the API appends to every row.
func (c *CensusClient) FetchSnapshots(ctx context.Context, q CensusQuery) ([]domain.AttributeSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "rate limit wait")
	}

	rows, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, errors.Validation("census response has no header row")
	}

	header := rows[0]
	varCols := make(map[int]string)
	geoCols := map[string]int{"state": -1, "county": -1, "tract": -1}
	for i, name := range header {
		if canonical, ok := q.Variables[name]; ok {
			varCols[i] = canonical
		}
		if _, ok := geoCols[name]; ok {
			geoCols[name] = i
		}
	}
	for name, i := range geoCols {
		if i < 0 {
			return nil, errors.Validationf("census response missing %s column", name)
		}
	}

	snaps := make([]domain.AttributeSnapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		geoid := row[geoCols["state"]] + row[geoCols["county"]] + row[geoCols["tract"]]

		values := make(map[string]float64, len(varCols))
		for i, canonical := range varCols {
			cell := strings.TrimSpace(row[i])
			if cell == "" || cell == "null" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Validationf("tract %s: variable %s: bad value %q", geoid, canonical, cell)
			}
			values[canonical] = v
		}

		snaps = append(snaps, domain.AttributeSnapshot{
			RegionID: geoid,
			Year:     q.Year,
			Values:   values,
		})
	}

	c.logger.Info("fetched census snapshots",
		"dataset", q.Dataset,
		"year", q.Year,
		"tracts", len(snaps),
	)
	return snaps, nil
}

func (c *CensusClient) get(ctx context.Context, q CensusQuery) ([][]string, error) {
	codes := make([]string, 0, len(q.Variables))
	for code := range q.Variables {
		codes = append(codes, code)
	}

	params := url.Values{}
	params.Set("get", strings.Join(codes, ","))
	params.Set("for", "tract:*")
	params.Set("in", fmt.Sprintf("state:%s county:%s", q.State, q.County))
	if c.key != "" {
		params.Set("key", c.key)
	}
	endpoint := fmt.Sprintf("%s/%d/%s?%s", c.baseURL, q.Year, q.Dataset, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "build census request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "census request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Validationf("census API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "decode census response")
	}
	return rows, nil
}
