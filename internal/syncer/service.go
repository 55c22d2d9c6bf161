// Package syncer mirrors player progress events from Kafka into Postgres.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"lifeline/pkg/consumer"
	"lifeline/pkg/logger"
	"lifeline/pkg/parser"
	"lifeline/pkg/worker"

	"go.uber.org/zap"
)

// Service coordinates the progress syncer components
type Service struct {
	logger     *logger.Logger
	consumer   consumer.Consumer
	workerPool *worker.WorkerPool
}

// NewService creates a new syncer service instance
func NewService(l *logger.Logger, c consumer.Consumer, p *worker.WorkerPool) *Service {
	return &Service{
		logger:     l.Named("syncer"),
		consumer:   c,
		workerPool: p,
	}
}

// Start consumes until ctx ends or the consumer fails, then shuts the pool down.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting progress syncer")

	s.workerPool.Start(ctx)
	msgChan, errChan := s.consumer.Consume(ctx)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				return s.Shutdown(context.WithoutCancel(ctx))
			}

			if err := s.handleMessage(ctx, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				s.logger.Error("failed to handle message", err, zap.Int64("offset", msg.Offset))
			}

		case err, ok := <-errChan:
			if ok && err != nil {
				shutdownErr := s.Shutdown(context.WithoutCancel(ctx))
				return errors.Join(fmt.Errorf("consumer error: %w", err), shutdownErr)
			}
			errChan = nil

		case <-ctx.Done():
			return s.Shutdown(context.WithoutCancel(ctx))
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, msg consumer.Message) error {
	record, err := parser.ParsePlayerEvent(msg.Value)
	if err != nil {
		s.logger.Warn("skipping malformed player event",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.ByteString("payload", msg.Value))

		// Committed so a poison message is not redelivered forever.
		return s.consumer.Commit(ctx, msg)
	}

	// The pool commits the offset once the batch holding this record is written.
	return s.workerPool.Submit(ctx, worker.Job{
		Record:  record,
		Message: msg,
	})
}

// Shutdown stops the service gracefully
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down progress syncer")

	errPool := s.workerPool.Shutdown(ctx)
	errCons := s.consumer.Close()

	if errPool != nil || errCons != nil {
		return fmt.Errorf("shutdown errors: pool=%v, consumer=%v", errPool, errCons)
	}
	return nil
}
