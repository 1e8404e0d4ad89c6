package hwc

import (
	"github.com/stretchr/testify/mock"
)

type MockSink struct {
	mock.Mock
}

var _ UpdateSink = (*MockSink)(nil)

func (m *MockSink) HandleUpdate(u Update) error {
	args := m.Called(u)
	return args.Error(0)
}
