// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session lazily mints and caches the backend conversation
// session id.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Minter creates a backend session. Satisfied by *api.Client.
type Minter interface {
	CreateSession(ctx context.Context) (string, error)
}

// Manager caches a single backend session id for the process lifetime.
// The id is minted lazily on the first Ensure call; concurrent callers
// share one in-flight creation. A failed creation is not cached, so the
// next turn retries.
type Manager struct {
	mu     sync.Mutex
	minter Minter
	logger *zap.Logger

	sessionID string
	inflight  chan struct{}
	lastErr   error
}

// NewManager creates a session manager over the given minter.
func NewManager(minter Minter, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{minter: minter, logger: logger}
}

// Ensure returns the cached session id, minting one on first use.
// Concurrent calls during creation block on the same request rather than
// issuing their own.
func (m *Manager) Ensure(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.sessionID != "" {
		id := m.sessionID
		m.mu.Unlock()
		return id, nil
	}
	if m.inflight != nil {
		// Another caller is minting; wait for it.
		wait := m.inflight
		m.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		m.mu.Lock()
		id, err := m.sessionID, m.lastErr
		m.mu.Unlock()
		if id != "" {
			return id, nil
		}
		return "", err
	}

	done := make(chan struct{})
	m.inflight = done
	m.mu.Unlock()

	id, err := m.minter.CreateSession(ctx)

	m.mu.Lock()
	m.inflight = nil
	m.lastErr = err
	if err == nil {
		m.sessionID = id
	}
	m.mu.Unlock()
	close(done)

	if err != nil {
		m.logger.Warn("session creation failed", zap.Error(err))
		return "", err
	}
	m.logger.Debug("session established", zap.String("session_id", id))
	return id, nil
}

// Current returns the cached session id, or "" if none was minted yet.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Reset discards the cached session id. The next Ensure mints a fresh
// one.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.sessionID = ""
	m.lastErr = nil
	m.mu.Unlock()
}
