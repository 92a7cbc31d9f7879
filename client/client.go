// Package client calls the network read API on behalf of a member
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// APIError is returned for every response with a status >= 400.
// It unwraps to the matching model error when the API sent a known code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Unwrap godoc
func (e *APIError) Unwrap() error {
	if err, ok := model.ErrorFromCode(e.Code); ok {
		return err
	}
	return nil
}

// Client structure
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New client for the api at baseURL authenticated with the bearer token
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// NetworkTree loads the tree rooted at rootID, 0 being the caller
func (c *Client) NetworkTree(ctx context.Context, rootID uint64, depth int) (*model.NestedNode, error) {
	path := "/network/tree"
	if rootID != 0 {
		path += "/" + strconv.FormatUint(rootID, 10)
	}
	tree := &model.NestedNode{}
	err := c.get(ctx, path, url.Values{"depth": {strconv.Itoa(depth)}}, tree)
	return tree, err
}

// Overview godoc
func (c *Client) Overview(ctx context.Context, rootID uint64) (*model.Overview, error) {
	overview := &model.Overview{}
	err := c.get(ctx, "/network/overview", rootQuery(rootID), overview)
	return overview, err
}

// DirectReferrals godoc
func (c *Client) DirectReferrals(ctx context.Context, rootID uint64, page, limit int) (*model.DirectReferralsResponse, error) {
	query := pageQuery(rootQuery(rootID), page, limit)
	response := &model.DirectReferralsResponse{}
	err := c.get(ctx, "/network/direct", query, response)
	return response, err
}

// TeamMembersByLevel godoc
func (c *Client) TeamMembersByLevel(ctx context.Context, rootID uint64, level, page, limit int) (*model.TeamMembersResponse, error) {
	query := pageQuery(rootQuery(rootID), page, limit)
	response := &model.TeamMembersResponse{}
	err := c.get(ctx, "/network/team/"+strconv.Itoa(level), query, response)
	return response, err
}

// AncestorPath godoc
func (c *Client) AncestorPath(ctx context.Context, nodeID uint64) (*model.AncestorPathResponse, error) {
	response := &model.AncestorPathResponse{}
	err := c.get(ctx, "/network/path/"+strconv.FormatUint(nodeID, 10), nil, response)
	return response, err
}

func rootQuery(rootID uint64) url.Values {
	query := url.Values{}
	if rootID != 0 {
		query.Set("root", strconv.FormatUint(rootID, 10))
	}
	return query
}

func pageQuery(query url.Values, page, limit int) url.Values {
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	return query
}

func (c *Client) get(ctx context.Context, path string, query url.Values, rcv interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "unable to build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "GET %s: unable to read response", path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var reqErr model.RequestError
		if json.Unmarshal(body, &reqErr) == nil && reqErr.Error != "" {
			apiErr.Code = reqErr.Code
			apiErr.Message = reqErr.Error
		}
		return apiErr
	}
	if err := json.Unmarshal(body, rcv); err != nil {
		return errors.Wrapf(err, "GET %s: invalid response", path)
	}
	return nil
}
