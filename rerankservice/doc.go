// 版权所有 2025 Helmsman Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 rerankservice 提供外部交叉编码重排服务的 HTTP 客户端。

# 概述

交叉编码模型对 (查询, 文档) 成对打分, 精度高于双塔检索但成本
也高, 因此只对融合后的候选集精排。本包面向 Cohere 兼容的
/v2/rerank 端点, 对上层暴露统一的 Provider 接口, 兼容协议的
自建重排服务同样适用。

# 核心接口

  - Provider：统一的重排接口, 包含 Rerank 与 Name 方法。
  - Request / Response：标准化的请求与响应模型, TopN 控制截断。
  - Result：单条结果, 含原始索引与 0-1 归一化相关性分数。

# 主要能力

  - Cohere Rerank v2 协议适配, 自定义 BaseURL 接入自建服务。
  - x/time/rate 客户端限速与请求超时控制。
*/
package rerankservice
