package gardena

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

const contentTypeJSONAPI = "application/vnd.api+json"

// Client wraps every call against the smart-system API. Host, client id and
// bearer token live in the key-value store and are read per call so a token
// refresh in the same process is picked up immediately. A circuit breaker
// shields the upstream; an open breaker surfaces like any other upstream
// failure, there are no retries.
type Client struct {
	store   kvstore.Store
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

func NewClient(store kvstore.Store, timeout time.Duration, log *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		store: store,
		http:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "gardena-smart-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		log: log,
	}
}

func (c *Client) value(ctx context.Context, key string) (string, error) {
	v, found, err := c.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found || v == "" {
		return "", errors.Errorf("missing %s in kv store", key)
	}
	return v, nil
}

// creds loads what every smart-API call needs.
func (c *Client) creds(ctx context.Context) (host, clientID, authToken string, err error) {
	if host, err = c.value(ctx, kvstore.KeySmartHost); err != nil {
		return
	}
	if clientID, err = c.value(ctx, kvstore.KeyClientID); err != nil {
		return
	}
	authToken, err = c.value(ctx, kvstore.KeyAuthToken)
	return
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*http.Response), nil
}

func setHeaders(req *http.Request, authToken, clientID string) {
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("X-Api-Key", clientID)
	req.Header.Set("Content-Type", contentTypeJSONAPI)
}

// SendCommand issues the actuator command for a device. An open pump is
// always started with a bounded override (seconds > 0) so a missed close
// event cannot leave it running; closed stops it until the next scheduled
// task. The API accepts asynchronously with 202, anything else is a
// CommandError.
func (c *Client) SendCommand(ctx context.Context, deviceID string, cmd model.PumpCommand, seconds int) error {
	host, clientID, authToken, err := c.creds(ctx)
	if err != nil {
		return &model.CommandError{DeviceID: deviceID, Err: err}
	}

	attrs := commandAttrs{Command: CommandStopUntilNext}
	if cmd == model.PumpOpen {
		attrs = commandAttrs{Command: CommandStartSeconds, Seconds: seconds}
	}
	payload := commandRequest{Data: commandData{
		Type:       "VALVE_CONTROL",
		ID:         "request-by-script",
		Attributes: attrs,
	}}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/v1/command/%s", host, deviceID), bytes.NewReader(body))
	if err != nil {
		return &model.CommandError{DeviceID: deviceID, Err: err}
	}
	setHeaders(req, authToken, clientID)
	req.Header.Set("Accept", contentTypeJSONAPI)

	resp, err := c.do(req)
	if err != nil {
		return &model.CommandError{DeviceID: deviceID, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return &model.CommandError{DeviceID: deviceID, Status: resp.StatusCode}
	}
	c.log.Infof("command: %s -> %s accepted", attrs.Command, deviceID)
	return nil
}

// RegisterWebhook registers (or re-registers) the callback URL for a
// location. 200 and 201 both count as success.
func (c *Client) RegisterWebhook(ctx context.Context, locationID, authToken, webhookURL string) (Registration, error) {
	host, err := c.value(ctx, kvstore.KeySmartHost)
	if err != nil {
		return Registration{}, &model.RegistrationError{Err: err}
	}
	clientID, err := c.value(ctx, kvstore.KeyClientID)
	if err != nil {
		return Registration{}, &model.RegistrationError{Err: err}
	}

	payload := webhookRequest{Data: webhookData{
		Type:       "WEBHOOK",
		ID:         locationID,
		Attributes: webhookAttrs{URL: webhookURL, LocationID: locationID},
	}}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/v2/webhook", bytes.NewReader(body))
	if err != nil {
		return Registration{}, &model.RegistrationError{Err: err}
	}
	setHeaders(req, authToken, clientID)
	req.Header.Set("Accept", contentTypeJSONAPI)

	resp, err := c.do(req)
	if err != nil {
		return Registration{}, &model.RegistrationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Registration{}, &model.RegistrationError{Status: resp.StatusCode}
	}

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Registration{}, &model.RegistrationError{Err: errors.Wrap(err, "decode response")}
	}
	return Registration{
		HmacSecret: out.Data.Attributes.HmacSecret,
		ValidUntil: out.Data.Attributes.ValidUntil,
	}, nil
}

// FirstLocationID lists locations for the account and returns the first.
// accessToken is passed explicitly because discovery runs right after a
// token exchange, before the persisted record is necessarily re-read.
func (c *Client) FirstLocationID(ctx context.Context, accessToken string) (string, error) {
	host, err := c.value(ctx, kvstore.KeySmartHost)
	if err != nil {
		return "", err
	}
	clientID, err := c.value(ctx, kvstore.KeyClientID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/v2/locations", nil)
	if err != nil {
		return "", err
	}
	setHeaders(req, accessToken, clientID)

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("locations status %d", resp.StatusCode)
	}
	var out locationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode locations")
	}
	if len(out.Data) == 0 {
		return "", errors.New("failed to retrieve location ID")
	}
	return out.Data[0].ID, nil
}

// LocationServices fetches a location with its included service items.
func (c *Client) LocationServices(ctx context.Context, locationID string) ([]ServiceItem, error) {
	host, clientID, authToken, err := c.creds(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/locations/%s", host, locationID), nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req, authToken, clientID)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("location detail status %d", resp.StatusCode)
	}
	var out locationDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode location detail")
	}
	return out.Included, nil
}
