// Copyright 2026 FlowForge Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package metrics 提供基于 Prometheus 的工作流指标采集能力，覆盖
执行、单步与模板三个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。Registerer 由
调用方注入，测试可使用独立 Registry 避免全局注册冲突。所有指标按
namespace 隔离，支持多维度 label 分组。

# 核心类型

  - Collector：指标收集器，实现 workflow.ExecutionObserver，
    并通过 StepObserver() 提供挂接到执行器的单步观察函数。

# 主要能力

  - 执行指标：执行总数（按 workflow_id/status）、执行耗时
    Histogram、活跃执行 Gauge。
  - 单步指标：单步执行计数，按 step_type/status 分组。
  - 模板指标：模板创建计数，按 template 分组。
*/
package metrics
