// Copyright 2025-2026 Helmsman Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package retrieval 提供海事法规语料的混合多信号检索与自适应重排实现。

该包覆盖检索管线的全部阶段：查询增强、策略路由、意图分类、三路并行
召回（向量/全文/图谱）、RRF 融合、重排级联、来源权重、图谱扩展与
船型适用性过滤，并通过 Engine 将各阶段串为一条容错管线。

# 核心接口/类型

  - Engine — 检索管线编排器（Retrieve / RetrieveForShip / RetrieveWithOptions）
  - Backend — 检索后端统一接口（Name / Signal / Search）
  - Reranker — 重排阶段接口（CrossEncoderReranker / UtilityReranker 两种实现）
  - ResultCache — 完整结果缓存接口，internal/cache 的 Manager 是生产实现
  - UtilityReader — 效用分批量读取接口，store.Store 是生产实现
  - QueryContext / Candidate / Passage — 贯穿管线的核心数据模型

# 主要能力

  - 查询增强：双语术语扩展、条款号注入、数值阈值与船型启发（QueryEnhancer）
  - 策略路由：条款引用正则 → keyword，否则 hybrid；实体抽取（QueryRouter）
  - 意图分类：五类意图触发词计分 + 船舶尺度正则 + 适用性覆写（IntentClassifier）
  - 三路召回：Qdrant 风格向量近邻、Elasticsearch 风格全文、Neo4j 引用图谱
  - RRF 融合：1/(offset+rank) 名次折算，跨后端信号溯源（fuse）
  - 重排级联：交叉编码精排 + 效用感知混排，任一阶段失败保持原序降级
  - 来源权重：馆藏标签或面包屑体裁推断的权威度乘数
  - 图谱扩展：候选不足时沿 INTERPRETS/AMENDS 关系补召回（GraphExpander)
  - 适用性过滤：船型归一化与 matched/neutral/conflicting 三段排序
*/
package retrieval
