package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"

	papi "github.com/voxexam/voxexam/internal/pkg/profile/api"
)

// Client communicates with the candidate profile service
type Client struct {
	httpclient *http.Client
	userURL    string
	timeout    time.Duration
	backoff    func() backoff.BackOff
}

// NewClient creates a profile service client
func NewClient(userURL string) (*Client, error) {
	res := Client{}
	if userURL == "" {
		return nil, fmt.Errorf("no userURL")
	}
	res.userURL = userURL
	res.timeout = time.Second * 10
	res.httpclient = profileHTTPClient()
	res.backoff = newSimpleBackoff
	return &res, nil
}

// GetUser returns the candidate profile by ID
func (sp *Client) GetUser(ctx context.Context, ID string) (*papi.UserInfo, error) {
	return goapp.InvokeWithBackoff(ctx, func() (*papi.UserInfo, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, sp.timeout)
		defer cancelF()
		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/user/%s", sp.userURL, ID), nil)
		if err != nil {
			return nil, false, err
		}
		req = req.WithContext(ctx)
		resp, err := sp.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return nil, goapp.IsRetryableCode(resp.StatusCode), err
		}
		res := &papi.UserInfo{}
		err = json.NewDecoder(resp.Body).Decode(&res)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't unmarshal: %w", err)
		}
		return res, false, nil
	}, sp.backoff())
}

// GetAnsweredQuestions returns the set of question IDs the candidate has
// already answered in earlier exams
func (sp *Client) GetAnsweredQuestions(ctx context.Context, userID string) (map[string]bool, error) {
	info, err := sp.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("can't get user info: %w", err)
	}
	res := make(map[string]bool, len(info.QuestionHistory))
	for _, id := range info.QuestionHistory {
		res[id] = true
	}
	return res, nil
}

// GetEmail returns the candidate's email address
func (sp *Client) GetEmail(ctx context.Context, userID string) (string, error) {
	info, err := sp.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("can't get user info: %w", err)
	}
	return info.Email, nil
}

func profileHTTPClient() *http.Client {
	return &http.Client{Transport: newTransport()}
}

func newTransport() http.RoundTripper {
	// default roundripper is not well suited for our case
	// it has just 2 idle connections per host, so try to tune a bit
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 100
	res.MaxIdleConns = 50
	res.MaxIdleConnsPerHost = 50
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
