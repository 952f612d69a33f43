// 版权所有 2025 Helmsman Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 store 提供段落效用分的持久化与异步反馈写入。

# 概述

效用分记录某个段落在某类查询意图下的历史有用程度, 供检索管线的
效用感知重排阶段读取。写入走 EMA 指数滑动平均, 单条语句 upsert,
冷启动以 0.5 为中性基线。本包通过 GORM 支持 postgres / mysql /
sqlite 三种方言, 并复用 internal/database 的连接池管理。

# 核心类型

  - Store          — 效用存储, GetUtilities / RecordFeedback / GetStats
  - UtilityScore   — GORM 模型, (passage_id, category) 复合主键
  - AsyncRecorder  — ants 协程池上的尽力而为异步写入器, 满载即丢弃
  - Stats          — 按意图类别聚合的效用统计

# 主要能力

  - EMA 更新：new = (1-lr)*old + lr*reward, 学习率默认 0.1
  - 批量读取：一次查询取回整批候选的效用分, 缺失按中性处理
  - 异步反馈：HTTP 层只提交不等待, 写入失败计入指标不影响请求
  - 方言选择：postgres / mysql / sqlite（glebarez 纯 Go 驱动）
*/
package store
