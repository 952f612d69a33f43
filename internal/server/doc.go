// 版权所有 2025 Helmsman Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 监听器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。helmsman 进程内存在两个实例：检索 API
监听器与 metrics 监听器，按名字区分日志来源。内置
SIGINT/SIGTERM 信号处理，适用于生产环境的优雅停机需求。

# 核心类型

  - Manager：监听器管理器，持有 http.Server、net.Listener
    与异步错误通道，提供 Start/Shutdown/WaitForShutdown
    等生命周期方法。
  - Config：监听器配置，包含监听地址、读写超时、空闲超时、
    最大请求头大小与优雅关闭超时，零值字段回落到默认值。

# 主要能力

  - 非阻塞启动：Start 同步绑定端口后在后台 goroutine 中服务，
    绑定失败同步返回。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空与连接释放，
    重复调用幂等，未启动也可安全关闭。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM，收到信号后
    自动触发优雅关闭流程。
  - 错误传播：Errors() 返回异步错误通道，供调用方监控服务异常。
  - 状态查询：IsRunning/BoundAddr 提供运行状态与实际绑定地址，
    配置随机端口时用 BoundAddr 取回。
*/
package server
