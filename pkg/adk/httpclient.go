package adk

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

// hclogAdapter forwards resty log output to an hclog.Logger
type hclogAdapter struct {
	logger hclog.Logger
}

func (a *hclogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

func (a *hclogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

func (a *hclogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// newRestyClient builds the HTTP client shared by the REST providers.
// Retries stay off: a synthesis call is a single attempt.
func newRestyClient(logger hclog.Logger) *resty.Client {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return resty.New().
		SetLogger(&hclogAdapter{logger: logger}).
		SetRetryCount(0).
		SetTimeout(60*time.Second).
		SetHeader("Content-Type", "application/json")
}
