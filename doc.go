/*
Package parley is a dialogue-session and human-approval orchestration
engine. It turns a declarative field schema into a slot-filling plan,
advances a multi-turn conversation through that plan while tracking
completion state, detects and recovers from user interruptions, and
manages a priority-tiered human-approval (HITL) workflow with automatic
timeout expiry and audit history.

# Concept

A session is created over an ordered field schema. Fields partition into
hard slots (required, must ask), soft slots (optional, may ask) and hidden
slots (defaulted, never asked). The engine selects the next slot to elicit
by priority, breaking ties by declaration order; your application decides
how to phrase the question. When the last askable slot is filled the
session hands off to the approval workflow, where a human decision —
approve, reject, modify or escalate — closes the loop, or a timeout sweep
expires it.

# Architecture

Core logic is decoupled from adapters. Persistence (memory or Redis),
transports (MCP tool calls or HTTP), locking and metrics all sit behind
interfaces in pkg/ports, so the engine can be embedded in a CLI, a server,
or AI agent infrastructure.

# Usage

	o := parley.New()
	sess, err := o.Dialogue.Create(ctx, dialogue.CreateParams{
		Entity: "support_ticket",
		Schema: fields,
	})

The cmd/parley binary serves the same engine over MCP (stdio or SSE) and
HTTP.
*/
package parley
