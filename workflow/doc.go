// Copyright 2026 FlowForge Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package workflow 提供面向 LLM Agent 的工作流编排核心。

# 概述

workflow 包实现了 FlowForge 的工作流数据模型与执行层：步骤（节点）与
迁移（边）构成有向图，支持条件分支与循环；Orchestrator 负责工作流注册、
执行启动与执行记录追踪；GraphExecutor 提供默认的图遍历执行器，
支持按步骤的超时、重试、熔断、错误恢复迁移与并行扇出。

# 核心类型

  - Step / Transition / Rule — 值对象（构造时校验不变量）
  - Workflow                 — 聚合根（步骤/迁移字典 + 入口节点）
  - Graph / BuildGraph       — 显式的图构建与结构校验
  - ExecutionState           — 执行期状态（显式区分不可变/可变更新）
  - ExecutionRecord          — 执行记录（running/completed/failed）
  - Orchestrator / Manager   — 生命周期管理与模板集成门面
  - Executor / GraphExecutor — 执行器接口与默认实现

# 主要能力

  - 条件迁移：`$变量` 占位符经 workflow/expr 安全求值（无动态代码执行）
  - 执行历史：ExecutionHistory 全节点追踪，可落地 persistence.HistoryStore
  - 序列化：Definition 支持 YAML / JSON 导入导出
  - 观测：zap 结构化日志、Prometheus 指标、OTel span
*/
package workflow
