// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the severity of a handled call.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// SlogLevel converts l into the equivalent [slog.Level].
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlowCall is the elapsed time above which a successful call is logged at [LevelWarn].
const SlowCall = 1000 * time.Millisecond

// LogEvent describes one handled call. Validated fields which were not
// gathered before a failure are nil.
type LogEvent struct {
	RequestID string
	Method    string
	URL       string
	Elapsed   time.Duration

	Params any
	Query  any
	Data   any
	Form   any
	Custom any

	// Result is the validated value returned by the dispatch function.
	// It is nil when the dispatch function returned a [*Response].
	Result any

	Err error
}

// LogSubscriber receives exactly one event for every call handled by an [Endpoint].
type LogSubscriber interface {
	OnLog(context.Context, Level, LogEvent)
}

// LogSubscriberFunc is a func adapter for [LogSubscriber].
type LogSubscriberFunc func(context.Context, Level, LogEvent)

// OnLog implements the [LogSubscriber] interface.
func (f LogSubscriberFunc) OnLog(ctx context.Context, level Level, ev LogEvent) {
	f(ctx, level, ev)
}

// RouteSubscriber is notified once for every route registered with a [Router].
type RouteSubscriber interface {
	OnRouteAdded(context.Context, Route) error
}

// RouteSubscriberFunc is a func adapter for [RouteSubscriber].
type RouteSubscriberFunc func(context.Context, Route) error

// OnRouteAdded implements the [RouteSubscriber] interface.
func (f RouteSubscriberFunc) OnRouteAdded(ctx context.Context, route Route) error {
	return f(ctx, route)
}

// SlogSubscriber returns a [LogSubscriber] writing one record per call to h.
func SlogSubscriber(h slog.Handler) LogSubscriber {
	log := slog.New(h)

	return LogSubscriberFunc(func(ctx context.Context, level Level, ev LogEvent) {
		attrs := []slog.Attr{
			slog.String("request_id", ev.RequestID),
			slog.String("method", ev.Method),
			slog.String("url", ev.URL),
			slog.Int64("elapsed_ms", ev.Elapsed.Milliseconds()),
			slog.Any("params", ev.Params),
			slog.Any("query", ev.Query),
			slog.Any("data", ev.Data),
			slog.Any("form", ev.Form),
		}
		if ev.Custom != nil {
			attrs = append(attrs, slog.Any("custom", ev.Custom))
		}
		if ev.Err != nil {
			attrs = append(attrs, slog.Any("error", ev.Err))
		}

		log.LogAttrs(ctx, level.SlogLevel(), "handled request", attrs...)
	})
}

// ZapSubscriber returns a [LogSubscriber] writing one entry per call to log.
func ZapSubscriber(log *zap.Logger) LogSubscriber {
	return LogSubscriberFunc(func(ctx context.Context, level Level, ev LogEvent) {
		ce := log.Check(zapLevel(level), "handled request")
		if ce == nil {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", ev.RequestID),
			zap.String("method", ev.Method),
			zap.String("url", ev.URL),
			zap.Int64("elapsed_ms", ev.Elapsed.Milliseconds()),
			zap.Any("params", ev.Params),
			zap.Any("query", ev.Query),
			zap.Any("data", ev.Data),
			zap.Any("form", ev.Form),
		}
		if ev.Custom != nil {
			fields = append(fields, zap.Any("custom", ev.Custom))
		}
		if ev.Err != nil {
			fields = append(fields, zap.Error(ev.Err))
		}
		ce.Write(fields...)
	})
}

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// subscribers is an ordered list of subscribers for a single event.
type subscribers[T any] struct {
	mu     sync.RWMutex
	nextID int
	items  []subscription[T]
}

type subscription[T any] struct {
	id  int
	sub T
}

func (s *subscribers[T]) add(sub T) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.items = append(s.items, subscription[T]{id: id, sub: sub})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, item := range s.items {
			if item.id == id {
				s.items = append(s.items[:i:i], s.items[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers[T]) set(subs ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = s.items[:0:0]
	for _, sub := range subs {
		s.items = append(s.items, subscription[T]{id: s.nextID, sub: sub})
		s.nextID++
	}
}

func (s *subscribers[T]) snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]T, len(s.items))
	for i, item := range s.items {
		subs[i] = item.sub
	}
	return subs
}
