// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/holomush/accounts/internal/account"
)

// MockNotifier is a mock implementation of account.Notifier.
type MockNotifier struct {
	mock.Mock
}

var _ account.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates a MockNotifier that asserts its expectations when
// the test finishes.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Notify provides a mock function.
func (m *MockNotifier) Notify(ctx context.Context, event account.Event) error {
	return m.Called(ctx, event).Error(0)
}
