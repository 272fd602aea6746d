//Package energyclient talks to the energy dashboard REST API
package energyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

//APIError is returned when the API answers with a failed envelope
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("energy api: %s (status: %d)", e.Message, e.Status)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

//Client is a typed client for the energy dashboard API
type Client struct {
	http   *resty.Client
	prefix string
}

//Option changes how a Client is set up
type Option func(*Client)

//WithPrefix overrides the default /api/v1 route prefix
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = "/" + strings.Trim(prefix, "/")
	}
}

//WithTimeout sets the timeout of every request
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

//WithRetries retries failed requests count times
func WithRetries(count int) Option {
	return func(c *Client) {
		c.http.SetRetryCount(count).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second)
	}
}

//New creates a client for the API served at baseURL
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		prefix: "/api/v1",
	}

	for _, option := range options {
		option(c)
	}

	return c
}

func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body interface{}) (*envelope, error) {
	req := c.http.R().SetContext(ctx).SetQueryParams(query)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.prefix+path)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}

	env := &envelope{}
	if err = json.Unmarshal(resp.Body(), env); err != nil {
		if resp.IsError() {
			return nil, &APIError{Status: resp.StatusCode(), Message: resp.Status()}
		}
		return nil, fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}

	if resp.IsError() {
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode())
		}
		return env, &APIError{Status: resp.StatusCode(), Message: message}
	}

	return env, nil
}

func (c *Client) fetch(ctx context.Context, method, path string, query map[string]string, body, result interface{}) error {
	env, err := c.call(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if result == nil || len(env.Data) == 0 {
		return nil
	}

	if err = json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("failed to decode data from %s %s: %w", method, path, err)
	}

	return nil
}

//Health reports whether the API and its database are up
func (c *Client) Health(ctx context.Context) (*Health, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return nil, fmt.Errorf("failed to call health: %w", err)
	}

	health := &Health{}
	if err = json.Unmarshal(resp.Body(), health); err != nil {
		return nil, &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	}

	return health, nil
}

func (c *Client) Classes(ctx context.Context) ([]Class, error) {
	classes := []Class{}
	err := c.fetch(ctx, http.MethodGet, "/classes", nil, nil, &classes)
	return classes, err
}

func (c *Client) Class(ctx context.Context, id uint) (*Class, error) {
	class := &Class{}
	if err := c.fetch(ctx, http.MethodGet, "/classes/"+itoa(id), nil, nil, class); err != nil {
		return nil, err
	}
	return class, nil
}

func (c *Client) CreateClass(ctx context.Context, class Class) (*Class, error) {
	created := &Class{}
	if err := c.fetch(ctx, http.MethodPost, "/classes", nil, class, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	devices := []Device{}
	err := c.fetch(ctx, http.MethodGet, "/devices", nil, nil, &devices)
	return devices, err
}

func (c *Client) DevicesByClass(ctx context.Context, classID uint) ([]Device, error) {
	devices := []Device{}
	err := c.fetch(ctx, http.MethodGet, "/devices/class/"+itoa(classID), nil, nil, &devices)
	return devices, err
}

func (c *Client) DeviceByEUI(ctx context.Context, eui string) (*Device, error) {
	device := &Device{}
	if err := c.fetch(ctx, http.MethodGet, "/devices/eui/"+eui, nil, nil, device); err != nil {
		return nil, err
	}
	return device, nil
}

//Ingest records a single reading
func (c *Client) Ingest(ctx context.Context, reading Reading) (*Result, error) {
	result := &Result{}
	if err := c.fetch(ctx, http.MethodPost, "/consumption", nil, reading, result); err != nil {
		return nil, err
	}
	return result, nil
}

//IngestBulk records many readings. Items that fail are reported in the returned
//BulkResult; an error is only returned when no reading could be recorded at all.
func (c *Client) IngestBulk(ctx context.Context, readings []Reading) (*BulkResult, error) {
	body := map[string]interface{}{"data": readings}

	env, err := c.call(ctx, http.MethodPost, "/consumption/bulk", nil, body)
	if env == nil {
		return nil, err
	}

	result := &BulkResult{Message: env.Message}
	if len(env.Data) > 0 {
		if decodeErr := json.Unmarshal(env.Data, &result.Results); decodeErr != nil {
			return nil, fmt.Errorf("failed to decode bulk results: %w", decodeErr)
		}
	}
	if len(env.Errors) > 0 {
		if decodeErr := json.Unmarshal(env.Errors, &result.Errors); decodeErr != nil {
			return nil, fmt.Errorf("failed to decode bulk errors: %w", decodeErr)
		}
	}

	return result, err
}

func (c *Client) HourlyClassConsumption(ctx context.Context, classID uint, date string) ([]HourlyPoint, error) {
	points := []HourlyPoint{}
	err := c.fetch(ctx, http.MethodGet, "/consumption/hourly/class/"+itoa(classID),
		map[string]string{"date": date}, nil, &points)
	return points, err
}

func (c *Client) ClassTotals(ctx context.Context, classID uint, startDate, endDate string) ([]DeviceTotal, error) {
	totals := []DeviceTotal{}
	err := c.fetch(ctx, http.MethodGet, "/consumption/total/class/"+itoa(classID),
		map[string]string{"startDate": startDate, "endDate": endDate}, nil, &totals)
	return totals, err
}

//Alerts lists the alerts matching filter
func (c *Client) Alerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	alerts := []Alert{}
	err := c.fetch(ctx, http.MethodGet, "/alerts", filter.query(), nil, &alerts)
	return alerts, err
}

func (c *Client) UnreadAlertCount(ctx context.Context) (int64, error) {
	count := struct {
		UnreadCount int64 `json:"unreadCount"`
	}{}
	err := c.fetch(ctx, http.MethodGet, "/alerts/count/unread", nil, nil, &count)
	return count.UnreadCount, err
}

//MarkAllAlertsRead marks every unread alert as read, limited to severity unless it is empty
func (c *Client) MarkAllAlertsRead(ctx context.Context, severity string) (int64, error) {
	query := map[string]string{}
	if severity != "" {
		query["severity"] = severity
	}

	updated := struct {
		Updated int64 `json:"updated"`
	}{}
	err := c.fetch(ctx, http.MethodPatch, "/alerts/read/all", query, nil, &updated)
	return updated.Updated, err
}

func (c *Client) Setting(ctx context.Context, key string) (*Setting, error) {
	setting := &Setting{}
	if err := c.fetch(ctx, http.MethodGet, "/settings/"+key, nil, nil, setting); err != nil {
		return nil, err
	}
	return setting, nil
}

//SaveSetting creates or replaces a system setting
func (c *Client) SaveSetting(ctx context.Context, key, value, dataType string) (*Setting, error) {
	body := map[string]string{"key": key, "value": value, "dataType": dataType}

	setting := &Setting{}
	if err := c.fetch(ctx, http.MethodPost, "/settings", nil, body, setting); err != nil {
		return nil, err
	}
	return setting, nil
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
