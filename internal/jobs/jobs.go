// Package jobs runs the agent's periodic maintenance: keeping the
// session token fresh and revalidating the Instagram connection.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"AdDeck/internal/connect"
	"AdDeck/internal/notify"
	"AdDeck/internal/session"
)

// Config represents a configuration for the jobs
type Config struct {
	RefreshSessionCronExp  string `toml:"refresh_session_cron,omitempty"`
	CheckConnectionCronExp string `toml:"check_connection_cron,omitempty"`
}

var (
	scheduler *gocron.Scheduler
	sessions  *session.Manager
	connector *connect.Processor
	notifier  notify.Notifier

	reconnectNotified bool
)

// Init initializes the jobs scheduler
func Init(config Config, s *session.Manager, c *connect.Processor, n notify.Notifier) {
	sessions, connector, notifier = s, c, n

	scheduler = gocron.NewScheduler(time.UTC)
	scheduler.SetMaxConcurrentJobs(1, gocron.RescheduleMode)
	addJobs(config)
	scheduler.StartAsync()
}

// Close stops the jobs scheduler
func Close() {
	if scheduler != nil {
		scheduler.Stop()
	}
}

// addJobs adds the jobs to the scheduler
func addJobs(config Config) {
	if config.RefreshSessionCronExp != "" {
		_, err := scheduler.Cron(config.RefreshSessionCronExp).Tag("RefreshSession").Do(RefreshSession)
		if err != nil {
			log.Errorf("failed to schedule RefreshSession: %v", err)
		}
	}
	if config.CheckConnectionCronExp != "" {
		_, err := scheduler.Cron(config.CheckConnectionCronExp).Tag("CheckConnection").Do(CheckConnection)
		if err != nil {
			log.Errorf("failed to schedule CheckConnection: %v", err)
		}
	}
}

// RefreshSession re-resolves the session status, which refreshes the
// token as a side effect; the owner is notified once when a previously
// live session expires
func RefreshSession() {
	logger := log.WithField("job", "RefreshSession")

	previous := sessions.Current()
	if previous.Status == session.StatusLoggedOut {
		// nothing to keep fresh
		return
	}

	status := sessions.Status(context.Background())
	if status.TokenExpired && previous.IsLoggedIn {
		notifier.Notify("Your AdDeck session has expired, please log in again.")
	}
	logger.Debugf("session status: %s", status.Status)
}

// CheckConnection revalidates the Instagram connection projection and
// surfaces the reconnect affordance when the stored credential expired
func CheckConnection() {
	logger := log.WithField("job", "CheckConnection")

	if !sessions.Current().IsLoggedIn {
		return
	}

	connector.Invalidate()
	status, err := connector.Status(context.Background())
	if err != nil {
		logger.Warnf("failed to fetch connection status: %v", err)
		return
	}

	if status.Connected && !status.Valid {
		if !reconnectNotified {
			notifier.Notify("Your Instagram connection has expired, please reconnect it from the dashboard.")
			reconnectNotified = true
		}
	} else {
		reconnectNotified = false
	}
	logger.Debugf("connection status: connected=%t valid=%t", status.Connected, status.Valid)
}
