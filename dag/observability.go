package dag

import (
	"context"
	"time"

	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/observability"
)

// WithMetrics wraps a Node so each run counts its final status.
func WithMetrics(node Node, metrics *observability.Metrics) Node {
	return &metricsNode{inner: node, metrics: metrics}
}

type metricsNode struct {
	inner   Node
	metrics *observability.Metrics
}

func (n *metricsNode) Name() string { return n.inner.Name() }

func (n *metricsNode) Run(ctx context.Context, state *State) (any, error) {
	n.metrics.NodeStatus(ctx, StatusRunning)
	result, err := n.inner.Run(ctx, state)
	if err != nil {
		n.metrics.NodeStatus(ctx, StatusFailed)
	} else {
		n.metrics.NodeStatus(ctx, StatusSuccess)
	}
	return result, err
}

// WithLogging wraps a Node with execution logging.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string { return n.inner.Name() }

func (n *loggingNode) Run(ctx context.Context, state *State) (any, error) {
	start := time.Now()
	result, err := n.inner.Run(ctx, state)

	fields := logger.Fields(logger.FieldNodeID, n.inner.Name(), logger.FieldDuration, time.Since(start).Milliseconds())
	if err != nil {
		fields[logger.FieldError] = err.Error()
		n.log.WithContext(ctx).Warn("dag node failed", fields)
	} else {
		n.log.WithContext(ctx).Debug("dag node completed", fields)
	}
	return result, err
}
