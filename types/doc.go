// Copyright (c) Helmsman Authors.
// Licensed under the MIT License.

/*
Package types 提供 Helmsman 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 api、cmd 等上层模块
提供统一的错误契约。跨包共享的错误码与结构化错误均定义于此，
以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Backend 标记

# 主要能力

  - 错误工具链：IsRetryable / GetErrorCode，errors.Is/As 兼容的 Unwrap
  - 链式构造：NewError(...).WithCause(...).WithHTTPStatus(...).WithRetryable(...)
*/
package types
