package rpc

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrFunctionOffline = errors.New("report function is offline")
	ErrTimeout         = errors.New("request timed out")
)

const (
	reportSubject  = "ledger.reports.generate"
	defaultTimeout = 15 * time.Second
)

type ReportRequest struct {
	OrgID     string `msgpack:"org_id"`
	Year      int    `msgpack:"year"`
	Format    string `msgpack:"format"`
	RequestID string `msgpack:"request_id"`
}

// ReportResponse is the discriminated payload the hosted function answers
// with: OK carries ReportURL, otherwise Error explains the failure.
type ReportResponse struct {
	OK        bool   `msgpack:"ok" json:"ok"`
	Error     string `msgpack:"error" json:"error,omitempty"`
	ReportURL string `msgpack:"report_url" json:"report_url,omitempty"`
	RequestID string `msgpack:"request_id" json:"request_id"`
}

type Client struct {
	nc *nats.Conn
}

func NewClient(nc *nats.Conn) *Client {
	return &Client{nc: nc}
}

// GenerateReport asks the hosted report function to render a yearly report
// for one organization and waits for the reply.
func (c *Client) GenerateReport(orgID string, year int, format string) (*ReportResponse, error) {
	req := ReportRequest{
		OrgID:     orgID,
		Year:      year,
		Format:    format,
		RequestID: uuid.New().String(),
	}

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	msg, err := c.nc.Request(reportSubject, payload, defaultTimeout)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, ErrFunctionOffline
		}
		if errors.Is(err, nats.ErrTimeout) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("request: %w", err)
	}

	var resp ReportResponse
	if err := msgpack.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &resp, nil
}
