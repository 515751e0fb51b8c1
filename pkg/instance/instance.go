package instance

import (
	"os"
	"strings"

	"github.com/samber/lo"
)

const (
	EnvInstanceID = "SMARTSHOP_INSTANCE_ID"
	defaultID     = "local"
)

// GetID names this process in logs and cron lock ownership. It prefers
// SMARTSHOP_INSTANCE_ID, then DYNO, then the hostname.
func GetID() string {
	host, _ := os.Hostname()
	return lo.CoalesceOrEmpty(
		strings.TrimSpace(os.Getenv(EnvInstanceID)),
		strings.TrimSpace(os.Getenv("DYNO")),
		host,
		defaultID,
	)
}
