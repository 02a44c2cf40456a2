package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/clarisa/pkg/logger"
	"github.com/okian/clarisa/pkg/metrics"
)

// startScheduler registers the pipeline gauge refresh on statsSchedule.
// It requires s.lifecycle to be held.
func (s *Service) startScheduler(ctx context.Context) error {
	if s.statsSchedule == "" {
		s.logger.Info(ctx, "pipeline stats job disabled")
		return nil
	}

	c := cron.New(cron.WithLogger(cronLogger{l: s.logger.Named("cron")}))
	if _, err := c.AddFunc(s.statsSchedule, func() {
		if err := s.RefreshPipelineMetrics(context.Background()); err != nil {
			s.logger.Warn(context.Background(), "pipeline stats refresh failed", logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("stats schedule %q: %w", s.statsSchedule, err)
	}
	c.Start()

	s.mu.Lock()
	s.scheduler = c
	s.mu.Unlock()

	s.logger.Info(ctx, "pipeline stats job scheduled", logger.String("schedule", s.statsSchedule))
	return nil
}

// RefreshPipelineMetrics recomputes pipeline stats and publishes them to
// the pipeline gauges.
func (s *Service) RefreshPipelineMetrics(ctx context.Context) error {
	st, err := s.PipelineStats(ctx)
	if err != nil {
		return err
	}
	byStage := make(map[string]int, len(st.ByStage))
	for stage, n := range st.ByStage {
		byStage[string(stage)] = n
	}
	metrics.UpdatePipeline(byStage, st.TotalValue, st.WeightedValue)
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
