package reportingclient

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/common"
	"github.com/pointsflow/points-indexer/pkg/httpclient"
	"github.com/pointsflow/points-indexer/pkg/logger"
)

type Config struct {
	Disabled   bool   `mapstructure:"disabled"`
	BaseURL    string `mapstructure:"base_url"`
	Name       string `mapstructure:"name"`
	WebsiteURL string `mapstructure:"website_url"`
	APIURL     string `mapstructure:"api_url"`
}

type ReportingClient struct {
	httpClient *httpclient.Client
	config     Config
}

const defaultBaseURL = "https://reporting.pointsflow.io"

func New(config Config) (*ReportingClient, error) {
	baseURL := utils.Default(config.BaseURL, defaultBaseURL)
	httpClient, err := httpclient.New(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	if config.Name == "" {
		return nil, errors.New("reporting.name config is required if reporting is enabled")
	}
	return &ReportingClient{
		httpClient: httpClient,
		config:     config,
	}, nil
}

type SubmitNodeReportPayload struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Chain      common.Chain `json:"chain"`
	WebsiteURL string       `json:"websiteURL,omitempty"`
	APIURL     string       `json:"apiURL,omitempty"`
}

func (r *ReportingClient) SubmitNodeReport(ctx context.Context, module string, chain common.Chain) error {
	payload := SubmitNodeReportPayload{
		Name:       r.config.Name,
		Type:       module,
		Chain:      chain,
		WebsiteURL: r.config.WebsiteURL,
		APIURL:     r.config.APIURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "can't marshal payload")
	}
	resp, err := r.httpClient.Post(ctx, "/v1/report/node", httpclient.RequestOptions{
		Body: body,
	})
	if err != nil {
		return errors.Wrap(err, "can't send request")
	}
	if resp.StatusCode() >= 400 {
		logger.WarnContext(ctx, "failed to submit node report", slog.Any("payload", payload), slog.Any("responseBody", resp.Body()))
	}
	logger.InfoContext(ctx, "node report submitted", slog.Any("payload", payload))
	return nil
}

type SubmitSnapshotReportPayload struct {
	Type        string       `json:"type"`
	Chain       common.Chain `json:"chain"`
	Series      string       `json:"series"`
	BlockHeight uint64       `json:"blockHeight"`
	Records     int          `json:"records"`
}

// SubmitSnapshotReport reports a freshly created points snapshot.
func (r *ReportingClient) SubmitSnapshotReport(ctx context.Context, payload SubmitSnapshotReportPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "can't marshal payload")
	}
	resp, err := r.httpClient.Post(ctx, "/v1/report/snapshot", httpclient.RequestOptions{
		Body: body,
	})
	if err != nil {
		return errors.Wrap(err, "can't send request")
	}
	if resp.StatusCode() >= 400 {
		logger.WarnContext(ctx, "failed to submit snapshot report", slog.Any("payload", payload), slog.Any("responseBody", resp.Body()))
	}
	logger.DebugContext(ctx, "snapshot report submitted", slog.Any("payload", payload))
	return nil
}
