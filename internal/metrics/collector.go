// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/flowforge/flowforge/workflow"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，覆盖工作流执行、单步与模板创建。
// The registerer is injected so tests can use isolated registries.
type Collector struct {
	// 执行指标
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	activeExecutions  prometheus.Gauge

	// 单步指标
	stepsTotal *prometheus.CounterVec

	// 模板指标
	templateCreations *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Workflow executions by workflow and final status",
		},
		[]string{"workflow_id", "status"},
	)
	c.executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"workflow_id"},
	)
	c.activeExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_active_executions",
			Help:      "Executions currently running",
		},
	)
	c.stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Step executions by type and status",
		},
		[]string{"step_type", "status"},
	)
	c.templateCreations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_template_creations_total",
			Help:      "Workflows created from templates",
		},
		[]string{"template"},
	)

	reg.MustRegister(
		c.executionsTotal,
		c.executionDuration,
		c.activeExecutions,
		c.stepsTotal,
		c.templateCreations,
	)
	return c
}

// ExecutionStarted 记录执行开始
func (c *Collector) ExecutionStarted(workflowID string) {
	c.activeExecutions.Inc()
}

// ExecutionFinished 记录执行结束
func (c *Collector) ExecutionFinished(workflowID string, status workflow.ExecutionStatus, elapsed time.Duration) {
	c.activeExecutions.Dec()
	c.executionsTotal.WithLabelValues(workflowID, string(status)).Inc()
	c.executionDuration.WithLabelValues(workflowID).Observe(elapsed.Seconds())
}

// StepObserver 返回可挂到执行器上的单步观察函数。
func (c *Collector) StepObserver() workflow.StepObserver {
	return func(workflowID string, step *workflow.Step, status workflow.ExecutionStatus) {
		c.stepsTotal.WithLabelValues(string(step.Type), string(status)).Inc()
	}
}

// TemplateCreated 记录模板创建
func (c *Collector) TemplateCreated(templateName string) {
	c.templateCreations.WithLabelValues(templateName).Inc()
}

var _ workflow.ExecutionObserver = (*Collector)(nil)
