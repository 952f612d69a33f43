// Copyright (c) Helmsman Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 Helmsman HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 Helmsman 所有 HTTP 端点的请求处理逻辑，
包括检索、效用反馈、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - RetrieveHandler  — 检索处理器，执行完整的多信号检索流水线
  - FeedbackHandler  — 效用反馈处理器，异步记录段落效用信号
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck      — 可插拔健康检查接口，PingCheck 适配任意 ping 函数

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 检索入口：RetrieveHandler.HandleRetrieve（POST /v1/retrieve）
  - 效用反馈：FeedbackHandler.HandleFeedback（POST /v1/feedback，202 受理）
  - 分级健康检查：RegisterCheck 注册关键依赖，RegisterOptionalCheck
    注册失败只降级的依赖（效用库、结果缓存）
*/
package handlers
