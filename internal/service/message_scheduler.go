package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// MessageSchedule is how often due scheduled messages are looked up.
const MessageSchedule = "@every 30s"

// StartMessageScheduler sends due scheduled messages on a cron schedule. It
// blocks until the context is cancelled and a running pass has finished, so
// it should be launched in a separate goroutine.
func (s *Service) StartMessageScheduler(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(MessageSchedule, func() { s.ProcessDueMessages(ctx) }); err != nil {
		return err
	}

	c.Start()
	s.logger.Info("Message scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Message scheduler stopped")
	return nil
}

// ProcessDueMessages sends every pending message whose send time has passed.
func (s *Service) ProcessDueMessages(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	messages, err := s.Messages.GetDue(ctx, s.now())
	if err != nil {
		s.logger.Errorf("Failed to get due messages: %v", err)
		return
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, msg)
	}
}
