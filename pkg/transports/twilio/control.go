package twilio

import (
	"context"
	"errors"
	"strings"

	"github.com/harunnryd/tavolo/pkg/transports"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callAPI interface {
	FetchCall(sid string, params *api.FetchCallParams) (*api.ApiV2010Call, error)
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

// CallControl fetches and ends calls through the Twilio REST API.
type CallControl struct {
	cfg    Config
	client callAPI
}

func NewCallControl(cfg Config) *CallControl {
	return &CallControl{cfg: cfg.withDefaults()}
}

func (c *CallControl) rest() (callAPI, error) {
	if c.client != nil {
		return c.client, nil
	}
	if c.cfg.AccountSID == "" || c.cfg.AuthToken == "" {
		return nil, errors.New("missing twilio credentials")
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: c.cfg.AccountSID,
		Password: c.cfg.AuthToken,
	})
	return rest.Api, nil
}

// FetchCall returns the provider's view of one call.
func (c *CallControl) FetchCall(ctx context.Context, callSID string) (transports.CallInfo, error) {
	_ = ctx
	if strings.TrimSpace(callSID) == "" {
		return transports.CallInfo{}, errors.New("call sid required")
	}
	client, err := c.rest()
	if err != nil {
		return transports.CallInfo{}, err
	}
	resp, err := client.FetchCall(callSID, &api.FetchCallParams{})
	if err != nil {
		return transports.CallInfo{}, err
	}
	info := transports.CallInfo{SID: callSID}
	if resp.Status != nil {
		info.Status = *resp.Status
	}
	if resp.From != nil {
		info.From = *resp.From
	}
	if resp.To != nil {
		info.To = *resp.To
	}
	if resp.Duration != nil {
		info.Duration = *resp.Duration
	}
	return info, nil
}

// EndCall hangs up an in-progress call.
func (c *CallControl) EndCall(ctx context.Context, callSID string) error {
	_ = ctx
	if strings.TrimSpace(callSID) == "" {
		return errors.New("call sid required")
	}
	client, err := c.rest()
	if err != nil {
		return err
	}
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")
	_, err = client.UpdateCall(callSID, params)
	return err
}

var _ transports.CallController = (*CallControl)(nil)
