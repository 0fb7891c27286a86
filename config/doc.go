// Copyright 2026 FlowForge Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

// Package config 提供 FlowForge 的配置管理功能。
//
// 支持默认值、YAML 文件与环境变量三级加载，
// 并负责根据日志配置构建 zap.Logger。
package config
