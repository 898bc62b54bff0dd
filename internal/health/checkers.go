// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"time"
)

// ConnectionState is the surface the broker checker reads.
type ConnectionState interface {
	Connected() bool
}

// BrokerChecker reports the MQTT session state. A lost session is
// unhealthy: without the broker no frames arrive and no alerts leave.
type BrokerChecker struct {
	conn ConnectionState
}

// NewBrokerChecker creates a checker over the broker session.
func NewBrokerChecker(conn ConnectionState) *BrokerChecker {
	return &BrokerChecker{conn: conn}
}

func (c *BrokerChecker) Name() string { return "mqtt" }

func (c *BrokerChecker) Check(_ context.Context) CheckResult {
	if c.conn == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "no broker session"}
	}
	if !c.conn.Connected() {
		return CheckResult{Status: StatusUnhealthy, Error: "broker session down", Message: "auto-reconnect in progress"}
	}
	return CheckResult{Status: StatusHealthy, Message: "connected"}
}

// EngineProbe is the surface the engine checker reads.
type EngineProbe interface {
	Ping(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// EngineChecker proves the admission loop is alive by round-tripping an
// operation through it, and reports the live-event count.
type EngineChecker struct {
	engine  EngineProbe
	timeout time.Duration
}

// NewEngineChecker creates a checker over the admission engine.
func NewEngineChecker(engine EngineProbe) *EngineChecker {
	return &EngineChecker{engine: engine, timeout: 2 * time.Second}
}

func (c *EngineChecker) Name() string { return "engine" }

func (c *EngineChecker) Check(ctx context.Context) CheckResult {
	if c.engine == nil {
		return CheckResult{Status: StatusUnhealthy, Error: "engine not wired"}
	}
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.engine.Ping(pctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: "admission loop unresponsive"}
	}
	n, err := c.engine.Len(pctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: "admission loop unresponsive"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("loop responsive, %d live events", n)}
}
