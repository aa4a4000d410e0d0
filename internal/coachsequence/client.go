package coachsequence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trainsync/internal/transport"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Client reads coach compositions.
type Client struct {
	doer    transport.Doer
	baseURL string
}

// NewClient constructs a composition client.
func NewClient(doer transport.Doer, baseURL string) (*Client, error) {
	if doer == nil {
		return nil, errors.New("coachsequence: nil doer")
	}
	if baseURL == "" {
		return nil, errors.New("coachsequence: empty base url")
	}
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Composition returns the coach groups of a train departing from a station.
// found is false when the upstream has no composition yet; that is not an
// error. It is not retried.
func (c *Client) Composition(ctx context.Context, trainNumber, evaNumber string, departure, initialDeparture time.Time) ([]CoachGroup, bool, error) {
	if trainNumber == "" {
		return nil, false, errors.New("coachsequence: empty train number")
	}
	if departure.IsZero() {
		return nil, false, errors.New("coachsequence: zero departure")
	}
	if initialDeparture.IsZero() {
		initialDeparture = departure
	}
	const op = "coachsequence.composition"
	params := url.Values{}
	params.Set("departure", departure.UTC().Format(timeLayout))
	params.Set("initialDeparture", initialDeparture.UTC().Format(timeLayout))
	if evaNumber != "" {
		params.Set("evaNumber", evaNumber)
	}
	req := transport.Request{
		URL:    fmt.Sprintf("%s/api/reihung/v4/wagen/%s", c.baseURL, url.PathEscape(trainNumber)),
		Params: params,
	}
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, false, transport.Classify(op, req.URL, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, false, nil
	case !resp.OK():
		return nil, false, transport.Rejected(op, resp)
	}
	var decoded sequenceResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, false, transport.Shape(op, resp.URL, err)
	}
	if decoded.Sequence == nil || len(decoded.Sequence.Groups) == 0 {
		return nil, false, nil
	}
	return decoded.Sequence.Groups, true, nil
}
