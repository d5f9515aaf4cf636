// Package candidateclient talks to the candidate API on behalf of a
// terminal countdown. It captures the clock offset on every server reading.
package candidateclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/timer"
	ws "github.com/queryproctor/backend/internal/websocket"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-gate error returned by the API.
type APIError struct {
	StatusCode int
	Code       response.ErrCode
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// View is the candidate's view of an assessment at fetch time. Rejected holds
// the gate code when the server refused entry; the schedule is still filled
// so the countdown can be shown.
type View struct {
	AssessmentID    uuid.UUID  `json:"assessment_id"`
	Status          string     `json:"status"`
	AssessmentName  string     `json:"assessment_name"`
	ScheduledStart  *time.Time `json:"scheduled_start"`
	EndTime         *time.Time `json:"end_time"`
	ServerTime      string     `json:"server_time"`
	DurationMinutes int        `json:"duration_minutes"`

	Rejected response.ErrCode `json:"-"`
	Offset   timer.Offset     `json:"-"`
}

// DurationText is the duration in the free-text form the countdown reads.
func (v *View) DurationText() string {
	if v.DurationMinutes <= 0 {
		return ""
	}
	return fmt.Sprintf("%d minutes", v.DurationMinutes)
}

// Client calls the candidate API with a candidate token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
	now     func() time.Time
}

// New creates a Client for the API at baseURL, e.g. "https://proctor.example.com".
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		dialer:  websocket.DefaultDialer,
		now:     time.Now,
	}
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

var gateRejections = map[response.ErrCode]bool{
	response.ErrAssessmentNotStarted: true,
	response.ErrAssessmentEnded:      true,
	response.ErrAssessmentCancelled:  true,
}

// FetchAssessment opens the assessment through the gate. Gate rejections are
// not errors: they return a View with Rejected set.
func (c *Client) FetchAssessment(ctx context.Context, assessmentID uuid.UUID) (*View, error) {
	env, status, arrived, err := c.get(ctx, "/api/v1/candidate/assessments/"+assessmentID.String())
	if err != nil {
		return nil, err
	}

	var v View
	switch {
	case status == http.StatusOK:
		var body struct {
			Assessment View `json:"assessment"`
		}
		if err := json.Unmarshal(env.Data, &body); err != nil {
			return nil, fmt.Errorf("decode assessment: %w", err)
		}
		v = body.Assessment
	case env.Error != nil && gateRejections[env.Error.Code]:
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, fmt.Errorf("decode gate payload: %w", err)
		}
		v.AssessmentID = assessmentID
		v.Rejected = env.Error.Code
	default:
		return nil, apiError(status, env)
	}

	serverTime, err := time.Parse(time.RFC3339Nano, v.ServerTime)
	if err != nil {
		return nil, fmt.Errorf("parse server_time %q: %w", v.ServerTime, err)
	}
	v.Offset = timer.NewOffset(serverTime, arrived)
	return &v, nil
}

// ServerOffset reads the public server time and returns the offset of the
// local clock.
func (c *Client) ServerOffset(ctx context.Context) (timer.Offset, error) {
	env, status, arrived, err := c.get(ctx, "/api/v1/public/time")
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, apiError(status, env)
	}

	var body struct {
		ServerTime string `json:"server_time"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		return 0, fmt.Errorf("decode server time: %w", err)
	}
	serverTime, err := time.Parse(time.RFC3339Nano, body.ServerTime)
	if err != nil {
		return 0, fmt.Errorf("parse server_time %q: %w", body.ServerTime, err)
	}
	return timer.NewOffset(serverTime, arrived), nil
}

// Stream subscribes to the assessment clock and calls fn with every event
// and the offset it implies. It returns nil after a final event and the
// context error when ctx is cancelled.
func (c *Client) Stream(ctx context.Context, assessmentID uuid.UUID, fn func(ws.ClockEvent, timer.Offset)) error {
	u, err := url.Parse(c.baseURL + "/ws/v1/candidate/assessments/" + assessmentID.String() + "/clock")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial clock stream: %s", resp.Status)
		}
		return fmt.Errorf("dial clock stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var ev ws.ClockEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read clock event: %w", err)
		}
		arrived := c.now()

		if ev.Event == ws.EventError {
			return errors.New("clock stream reported an error")
		}
		serverTime, err := time.Parse(time.RFC3339Nano, ev.ServerTime)
		if err != nil {
			return fmt.Errorf("parse server_time %q: %w", ev.ServerTime, err)
		}
		fn(ev, timer.NewOffset(serverTime, arrived))
		if ev.Final() {
			return nil
		}
	}
}

// get performs an authenticated GET and returns the decoded envelope, the
// status and the local time the response arrived.
func (c *Client) get(ctx context.Context, path string) (*envelope, int, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, time.Time{}, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, time.Time{}, err
	}
	defer resp.Body.Close()
	arrived := c.now()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, arrived, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	return &env, resp.StatusCode, arrived, nil
}

func apiError(status int, env *envelope) error {
	e := &APIError{StatusCode: status}
	if env.Error != nil {
		e.Code = env.Error.Code
		e.Message = env.Error.Message
	}
	return e
}
