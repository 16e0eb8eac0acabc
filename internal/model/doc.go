// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages, source
// citations, and ingestion tasks, plus the pure projection functions that
// turn raw backend payloads into rendering-ready shapes.
//
// Everything in this package is side-effect free. Stream handling lives in
// internal/stream; state ownership lives in internal/turn and internal/tasks.
package model
