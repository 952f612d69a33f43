// 版权所有 2025 Helmsman Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供文本嵌入客户端, 将查询文本转换为向量表示
以支持语义检索。

# 概述

本包通过 Provider 接口屏蔽嵌入服务的协议细节。默认实现面向
OpenAI 兼容的 /v1/embeddings 端点, 任何兼容该协议的本地推理
服务（如 vLLM、Ollama 的兼容层）也可直接接入。

# 核心接口

  - Provider：统一的嵌入接口, 包含 Embed、EmbedQuery、Name
    与 Dimensions 方法。
  - Config：客户端配置, 含 BaseURL、APIKey、Model、Dimensions、
    Timeout 与每秒请求上限。

# 主要能力

  - 批量嵌入与单查询嵌入两种调用方式。
  - x/time/rate 客户端限速, 0 表示不限速。
  - 超时与错误信息截断, 上游故障不泄露完整响应体。
*/
package embedding
